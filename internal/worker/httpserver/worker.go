// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package httpserver runs the HTTP server hosting the ledger API.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

var logger = loggo.GetLogger("poolferry.worker.httpserver")

// Outstanding requests get this long to finish once the worker starts
// dying.
const shutdownTimeout = 30 * time.Second

// Server is the part of the API server the worker drives. It handles
// requests while running and releases its event streams when closed.
type Server interface {
	http.Handler

	// Close terminates any long-lived streams. Streams hold hijacked
	// connections, which an http.Server shutdown leaves untouched.
	Close()
}

// Config is the configuration required for running the API server
// worker.
type Config struct {
	Address string
	Server  Server
}

// Validate returns an error if config cannot drive the worker.
func (config Config) Validate() error {
	if config.Address == "" {
		return errors.NotValidf("empty Address")
	}
	if config.Server == nil {
		return errors.NotValidf("nil Server")
	}
	return nil
}

// Worker serves the ledger API over HTTP until killed.
type Worker struct {
	tomb     tomb.Tomb
	config   Config
	listener net.Listener
}

// NewWorker starts listening on the configured address and returns
// the worker serving it.
func NewWorker(config Config) (worker.Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	listener, err := net.Listen("tcp", config.Address)
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %q", config.Address)
	}
	w := &Worker{
		config:   config,
		listener: listener,
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// URL reports the base URL the server is reachable on. This is how
// the chosen port is discovered when the configured address leaves
// the port to the kernel.
func (w *Worker) URL() string {
	return fmt.Sprintf("http://%s", w.listener.Addr())
}

func (w *Worker) loop() error {
	server := &http.Server{Handler: w.config.Server}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(w.listener)
	}()
	logger.Infof("serving the ledger API on %s", w.listener.Addr())

	select {
	case <-w.tomb.Dying():
		w.config.Server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return errors.Annotate(err, "shutting down API server")
		}
		// Serve returns ErrServerClosed once Shutdown completes.
		<-serveErr
		return tomb.ErrDying
	case err := <-serveErr:
		return errors.Annotate(err, "serving API")
	}
}
