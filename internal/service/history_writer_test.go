package service

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
	"github.com/QingMing-Bot/nvmeof-runner/internal/repository"
)

func TestHistoryWriterFlushesOnClose(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewHistoryRepo(db)
	if err := repo.EnsureSchema(); err != nil {
		t.Fatal(err)
	}

	w := NewHistoryWriter(repo, 60, 100) // interval long enough that only Close flushes
	for i := 0; i < 5; i++ {
		w.Record(domain.ExecHistory{RunID: "run-a", Host: "10.0.0.1", Command: "uname -r"})
	}
	w.Close()

	rows, err := repo.ListByRun("run-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("expect 5 rows flushed, got %d", len(rows))
	}
}

func TestHistoryWriterBatchThreshold(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewHistoryRepo(db)
	if err := repo.EnsureSchema(); err != nil {
		t.Fatal(err)
	}

	w := NewHistoryWriter(repo, 60, 2)
	defer w.Close()
	w.Record(domain.ExecHistory{RunID: "run-b", Command: "a"})
	w.Record(domain.ExecHistory{RunID: "run-b", Command: "b"})

	// Batch size reached; rows should land without waiting for the ticker.
	deadline := 200
	for i := 0; i < deadline; i++ {
		rows, err := repo.ListByRun("run-b")
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("batch not flushed")
}
