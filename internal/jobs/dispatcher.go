package jobs

import (
	"context"
	"log"
	"time"
)

// RunProcessor defines the interface for draining due workflow runs
type RunProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Dispatcher polls the workflow run queue on a fixed interval and hands due
// runs to its processor.
type Dispatcher struct {
	processor    RunProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(processor RunProcessor, pollInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the dispatcher's polling loop
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	defer close(d.doneChan)

	log.Printf("Dispatcher started with poll interval: %v", d.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Dispatcher stopped: context cancelled")
			return
		case <-d.stopChan:
			log.Println("Dispatcher stopped: stop signal received")
			return
		case <-ticker.C:
			if err := d.processor.ProcessJobs(ctx); err != nil {
				log.Printf("Error processing runs: %v", err)
			}
		}
	}
}

// Stop gracefully stops the dispatcher
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	<-d.doneChan
	log.Println("Dispatcher shutdown complete")
}
