// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package eventlog records migration milestones as they are published
// on the central hub, both to the log and to the counters scraped
// from the metrics endpoint.
package eventlog

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/poolferry/poolferry/core/migration"
)

var logger = loggo.GetLogger("poolferry.worker.eventlog")

// Config holds the dependencies of the event log worker.
type Config struct {
	Hub       *pubsub.StructuredHub
	Collector *Collector
}

// Validate returns an error if the worker cannot be started with this
// configuration.
func (config Config) Validate() error {
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Collector == nil {
		return errors.NotValidf("nil Collector")
	}
	return nil
}

type milestone struct {
	topic string
	data  map[string]interface{}
}

// Worker watches the hub for migration milestones.
type Worker struct {
	catacomb   catacomb.Catacomb
	config     Config
	milestones chan milestone
}

// NewWorker returns a worker that logs migration milestones and keeps
// the migration counters current.
func NewWorker(config Config) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config:     config,
		milestones: make(chan milestone),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

func (w *Worker) loop() error {
	for _, topic := range []string{
		migration.OwnershipAcceptedTopic,
		migration.CompletedTopic,
	} {
		unsubscribe, err := w.config.Hub.Subscribe(topic, w.onMilestone)
		if err != nil {
			return errors.Annotatef(err, "subscribing to %q", topic)
		}
		defer unsubscribe()
	}

	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case m := <-w.milestones:
			w.record(m)
		}
	}
}

// Hub callbacks run on their own goroutine, so hand the milestone to
// the loop rather than touching worker state here.
func (w *Worker) onMilestone(topic string, data map[string]interface{}) {
	select {
	case w.milestones <- milestone{topic: topic, data: data}:
	case <-w.catacomb.Dying():
	}
}

func (w *Worker) record(m milestone) {
	switch m.topic {
	case migration.OwnershipAcceptedTopic:
		w.config.Collector.started.Inc()
		logger.Infof("migration of %v started, control moved to %v",
			m.data["instance"], m.data["new-admin"])
	case migration.CompletedTopic:
		w.config.Collector.completed.Inc()
		logger.Infof("migration of %v complete, replacement %v is live",
			m.data["old-instance"], m.data["new-instance"])
	}
}
