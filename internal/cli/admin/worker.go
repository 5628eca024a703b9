package admin

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/supportiq/internal/corpus"
	"github.com/cloo-solutions/supportiq/internal/jobs"
)

func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Keep the knowledge index in sync with the corpus",
		Long:  "Load or build the index, then rebuild it whenever the corpus file changes",
		Args:  cobra.NoArgs,
		RunE:  runWorker,
	}

	cmd.Flags().Duration("interval", 0, "Refresh interval (default from SUPPORTIQ_INDEX_REFRESH_INTERVAL, or 1m)")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = a.cfg.IndexRefreshInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}

	manager, err := a.indexManager(ctx)
	if err != nil {
		return err
	}
	if err := manager.LoadOrBuild(ctx); err != nil {
		return fmt.Errorf("failed to load knowledge index: %w", err)
	}

	refresher := jobs.NewIndexRefresher(corpus.NewFileSource(a.cfg.CorpusPath), manager.Index(), manager)
	worker := jobs.NewWorker("index-refresh", refresher, interval)
	go worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()
	return nil
}
