package main

import (
	"database/sql"
	"encoding/json"
	goflag "flag"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
	"github.com/QingMing-Bot/nvmeof-runner/internal/nvmeof"
	"github.com/QingMing-Bot/nvmeof-runner/internal/repository"
	"github.com/QingMing-Bot/nvmeof-runner/internal/service"
	"github.com/QingMing-Bot/nvmeof-runner/internal/ssh"
	"github.com/QingMing-Bot/nvmeof-runner/pkg/config"
)

func main() {
	var (
		cfgPath string
		output  string
		dataDir string
	)

	exitCode := 0
	rootCmd := &cobra.Command{
		Use:   "nvmeof-runner",
		Short: "Run the NVMe-oF remote test suite against a target/initiator pair",
		Run: func(cmd *cobra.Command, args []string) {
			exitCode = runSuite(cfgPath, output, dataDir)
		},
	}
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "nvmeof.yaml", "run configuration file")
	rootCmd.Flags().StringVarP(&output, "output", "o", config.ResultFile, "report artifact path")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "override data directory")
	rootCmd.Flags().AddGoFlagSet(goflag.CommandLine) // glog flags

	if err := rootCmd.Execute(); err != nil {
		glog.Error(err)
		exitCode = 1
	}
	glog.Flush()
	os.Exit(exitCode)
}

func runSuite(cfgPath, output, dataDir string) int {
	if dataDir != "" {
		os.Setenv("NVMEOF_DATA_DIR", dataDir)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		glog.Errorf("Load config: %v", err)
		return 1
	}

	db, err := sql.Open("sqlite", cfg.DBPath())
	if err != nil {
		glog.Errorf("Open database: %v", err)
		return 1
	}
	defer db.Close()

	hRepo := repository.NewHistoryRepo(db)
	runRepo := repository.NewRunRepo(db)
	if err := hRepo.EnsureSchema(); err != nil {
		glog.Errorf("History schema: %v", err)
		return 1
	}
	if err := runRepo.EnsureSchema(); err != nil {
		glog.Errorf("Run schema: %v", err)
		return 1
	}
	_ = hRepo.Cleanup(cfg.HistoryRetentionDays, cfg.HistoryMaxRows)

	hWriter := service.NewHistoryWriter(hRepo, cfg.HistoryFlushInterval, cfg.HistoryBatchSize)

	runID := domain.NewRunID()
	targetSess := ssh.NewSession(cfg.Target.SSH)
	targetSess.SetRecorder(hWriter, runID)
	initiatorSess := ssh.NewSession(cfg.Initiator.SSH)
	initiatorSess.SetRecorder(hWriter, runID)

	target := nvmeof.NewTarget(cfg.Target, targetSess)
	initiator := nvmeof.NewInitiator(cfg.Initiator, cfg.Target, initiatorSess)
	initiator.SetSettleDelay(time.Duration(cfg.SettleDelaySec) * time.Second)

	suite := service.NewSuite(runID, target, initiator, cfg.Battery)
	report := suite.Run()

	hWriter.Close()
	if err := runRepo.Save(report); err != nil {
		glog.Warningf("Persist run: %v", err)
	}
	if err := writeReport(report, output); err != nil {
		glog.Errorf("Write report: %v", err)
		return 1
	}
	glog.Infof("Results saved to: %s", output)

	if report.Failed() {
		return 1
	}
	return 0
}

func writeReport(report *domain.TestReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
