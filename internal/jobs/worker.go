package jobs

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/supportiq/internal/telemetry"
)

// Processor runs one unit of periodic background work
type Processor interface {
	Process(ctx context.Context) error
}

// Worker calls a Processor on a fixed interval until stopped
type Worker struct {
	name         string
	processor    Processor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor Processor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop and blocks until ctx is cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s worker started with poll interval: %v", w.name, w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop gracefully stops the worker and waits for the loop to exit
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s worker shutdown complete", w.name)
}

func (w *Worker) runOnce(ctx context.Context) {
	ctx, span := telemetry.StartTransaction(ctx, w.name, "worker.process")
	defer span.End()

	if err := w.processor.Process(ctx); err != nil {
		log.Printf("%s worker: %v", w.name, err)
		span.SetError(err)
	}
}
