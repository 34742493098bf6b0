package orchestrator

import (
	"context"
	"sync"

	logger "github.com/sirupsen/logrus"

	"copytrader/src/model"
)

type job struct {
	signal       *model.Signal
	subscription model.SignalSubscription
}

// Dispatcher fans executions out to a bounded worker pool. One unit of work
// per matched subscription; no ordering across pairs, and the pool size caps
// concurrent broker calls.
type Dispatcher struct {
	orchestrator *Orchestrator
	jobs         chan job
	wg           sync.WaitGroup
}

func NewDispatcher(orchestrator *Orchestrator) *Dispatcher {
	return &Dispatcher{
		orchestrator: orchestrator,
		jobs:         make(chan job, orchestrator.config.QueueSize),
	}
}

// Start launches the worker goroutines. They drain the queue until Stop
// closes it.
func (d *Dispatcher) Start(ctx context.Context) {
	workers := d.orchestrator.config.Workers
	if workers <= 0 {
		workers = 1
	}

	logger.WithField("workers", workers).Info("execution dispatcher started")

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for unit := range d.jobs {
		d.orchestrator.Execute(ctx, unit.signal, unit.subscription)
	}
}

// Dispatch enqueues every auto-trade match for a signal. Non-blocking from
// the gateway's perspective unless the queue is saturated.
func (d *Dispatcher) Dispatch(signal *model.Signal, matches []model.SignalSubscription) {
	for _, match := range matches {
		d.jobs <- job{signal: signal, subscription: match}
	}
}

// Stop closes the queue and waits for in-flight executions to reach a
// durable state.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
	logger.Info("execution dispatcher drained")
}
