package service

import (
	"sync"
	"time"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
	"github.com/QingMing-Bot/nvmeof-runner/internal/repository"
)

// HistoryWriter batches command audit rows into the history repository
// off the execution path. Sessions call Record after every remote
// command; a full buffer drops rows rather than blocking a phase.
type HistoryWriter struct {
	repo          *repository.HistoryRepo
	ch            chan domain.ExecHistory
	stop          chan struct{}
	flushInterval time.Duration
	batchSize     int
	wg            sync.WaitGroup
}

func NewHistoryWriter(repo *repository.HistoryRepo, flushSec int, batchSize int) *HistoryWriter {
	if flushSec <= 0 {
		flushSec = 2
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	hw := &HistoryWriter{
		repo:          repo,
		ch:            make(chan domain.ExecHistory, batchSize*4),
		stop:          make(chan struct{}),
		flushInterval: time.Duration(flushSec) * time.Second,
		batchSize:     batchSize,
	}
	hw.wg.Add(1)
	go hw.loop()
	return hw
}

func (w *HistoryWriter) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	batch := make([]domain.ExecHistory, 0, w.batchSize)
	flush := func() {
		for i := range batch {
			h := batch[i]
			_ = w.repo.Insert(&h)
		}
		batch = batch[:0]
	}
	for {
		select {
		case h := <-w.ch:
			batch = append(batch, h)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}
		case <-w.stop:
			// Drain whatever arrived before Close.
			for {
				select {
				case h := <-w.ch:
					batch = append(batch, h)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Record queues one audit row; drops it if the buffer is full.
func (w *HistoryWriter) Record(h domain.ExecHistory) {
	select {
	case w.ch <- h:
	default: /* drop if full */
	}
}

// Close flushes pending rows and stops the writer.
func (w *HistoryWriter) Close() { close(w.stop); w.wg.Wait() }
