// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package apiserver exposes the ledger over HTTP: the migration
// trigger, converter administration, guard sweeps, a websocket stream
// of migration events and prometheus metrics.
package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bmizerany/pat"
	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poolferry/poolferry/apiserver/params"
	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coremigration "github.com/poolferry/poolferry/core/migration"
)

var logger = loggo.GetLogger("poolferry.apiserver")

// Orchestrator triggers converter migrations.
type Orchestrator interface {
	Upgrade(ctx context.Context, caller asset.Address, versionTag string) (coremigration.Report, error)
	UpgradeOld(ctx context.Context, caller, oldInstance asset.Address, versionTag string) (coremigration.Report, error)
}

// Converters serves converter reads and ownership changes.
type Converters interface {
	Position(ctx context.Context, address asset.Address) (converter.Position, error)
	TransferOwnership(ctx context.Context, caller, address, newOwner asset.Address) error
	AcceptOwnership(ctx context.Context, caller, address asset.Address) error
}

// Guard sweeps misdirected funds out of guarded entities.
type Guard interface {
	Withdraw(ctx context.Context, caller, guard, assetID, destination asset.Address, amount int64) error
}

// Config holds a Server's collaborators.
type Config struct {
	Orchestrator Orchestrator
	Converters   Converters
	Guard        Guard
	Hub          *pubsub.StructuredHub
	Gatherer     prometheus.Gatherer
}

// Validate returns an error if the config cannot be used to serve
// requests.
func (config Config) Validate() error {
	if config.Orchestrator == nil {
		return errors.NotValidf("nil Orchestrator")
	}
	if config.Converters == nil {
		return errors.NotValidf("nil Converters")
	}
	if config.Guard == nil {
		return errors.NotValidf("nil Guard")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Gatherer == nil {
		return errors.NotValidf("nil Gatherer")
	}
	return nil
}

// Server routes ledger operations to the domain services. The HTTP
// listener belongs to the worker that runs the server; Close only
// terminates live event streams.
type Server struct {
	config Config
	mux    *pat.PatternServeMux

	closeOnce sync.Once
	stop      chan struct{}
}

// NewServer returns a Server handling the API endpoints.
func NewServer(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	srv := &Server{
		config: config,
		mux:    pat.New(),
		stop:   make(chan struct{}),
	}
	srv.mux.Post("/migration", http.HandlerFunc(srv.migrate))
	srv.mux.Get("/converter/:address", http.HandlerFunc(srv.converter))
	srv.mux.Post("/converter/:address/transfer-ownership", http.HandlerFunc(srv.transferOwnership))
	srv.mux.Post("/converter/:address/accept-ownership", http.HandlerFunc(srv.acceptOwnership))
	srv.mux.Post("/guard/:address/withdraw", http.HandlerFunc(srv.withdraw))
	srv.mux.Get("/watch", http.HandlerFunc(srv.watch))
	srv.mux.Get("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	return srv, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

// Close terminates live event streams. Streams hold hijacked
// connections, which an http.Server shutdown leaves untouched.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Server) migrate(w http.ResponseWriter, req *http.Request) {
	var body params.MigrationRequest
	if err := readJSON(req, &body); err != nil {
		sendError(w, err)
		return
	}
	caller, err := parseAddress(body.Caller)
	if err != nil {
		sendError(w, err)
		return
	}
	oldInstance, err := parseAddress(body.OldConverter)
	if err != nil {
		sendError(w, err)
		return
	}

	var report coremigration.Report
	if oldInstance.IsZero() {
		report, err = s.config.Orchestrator.Upgrade(req.Context(), caller, body.Version)
	} else {
		report, err = s.config.Orchestrator.UpgradeOld(req.Context(), caller, oldInstance, body.Version)
	}
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, params.MigrationResult{
		OldInstance: report.OldInstance.String(),
		NewInstance: report.NewInstance.String(),
		Admin:       report.Admin.String(),
		Reserves:    report.Reserves,
		Phase:       report.Phase.String(),
	})
}

func (s *Server) converter(w http.ResponseWriter, req *http.Request) {
	address, err := parseAddress(req.URL.Query().Get(":address"))
	if err != nil {
		sendError(w, err)
		return
	}
	position, err := s.config.Converters.Position(req.Context(), address)
	if err != nil {
		sendError(w, err)
		return
	}

	result := params.ConverterResult{
		Address:      position.Address.String(),
		Owner:        position.Owner.String(),
		PendingOwner: emptyIfZero(position.PendingOwner),
		Token:        position.Token.String(),
		Version:      position.Version,
		MaxFee:       position.MaxFee,
		Fee:          position.Fee,
		Whitelist:    emptyIfZero(position.Whitelist),
		Reserves:     make([]params.ReserveResult, 0, len(position.Reserves)),
	}
	for _, r := range position.Reserves {
		result.Reserves = append(result.Reserves, params.ReserveResult{
			Asset:          r.Asset.String(),
			Weight:         r.Weight,
			VirtualBalance: r.VirtualBalance,
			Balance:        position.Holdings[r.Asset],
			Active:         r.Active,
		})
	}
	sendJSON(w, http.StatusOK, result)
}

func (s *Server) transferOwnership(w http.ResponseWriter, req *http.Request) {
	address, err := parseAddress(req.URL.Query().Get(":address"))
	if err != nil {
		sendError(w, err)
		return
	}
	var body params.TransferOwnershipRequest
	if err := readJSON(req, &body); err != nil {
		sendError(w, err)
		return
	}
	caller, err := parseAddress(body.Caller)
	if err != nil {
		sendError(w, err)
		return
	}
	newOwner, err := parseAddress(body.NewOwner)
	if err != nil {
		sendError(w, err)
		return
	}
	if err := s.config.Converters.TransferOwnership(req.Context(), caller, address, newOwner); err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, params.ErrorResult{})
}

func (s *Server) acceptOwnership(w http.ResponseWriter, req *http.Request) {
	address, err := parseAddress(req.URL.Query().Get(":address"))
	if err != nil {
		sendError(w, err)
		return
	}
	var body params.AcceptOwnershipRequest
	if err := readJSON(req, &body); err != nil {
		sendError(w, err)
		return
	}
	caller, err := parseAddress(body.Caller)
	if err != nil {
		sendError(w, err)
		return
	}
	if err := s.config.Converters.AcceptOwnership(req.Context(), caller, address); err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, params.ErrorResult{})
}

func (s *Server) withdraw(w http.ResponseWriter, req *http.Request) {
	guard, err := parseAddress(req.URL.Query().Get(":address"))
	if err != nil {
		sendError(w, err)
		return
	}
	var body params.WithdrawRequest
	if err := readJSON(req, &body); err != nil {
		sendError(w, err)
		return
	}
	caller, err := parseAddress(body.Caller)
	if err != nil {
		sendError(w, err)
		return
	}
	assetID, err := parseAddress(body.Asset)
	if err != nil {
		sendError(w, err)
		return
	}
	destination, err := parseAddress(body.Destination)
	if err != nil {
		sendError(w, err)
		return
	}
	if err := s.config.Guard.Withdraw(req.Context(), caller, guard, assetID, destination, body.Amount); err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, params.ErrorResult{})
}

func (s *Server) watch(w http.ResponseWriter, req *http.Request) {
	handler := func(socket *websocket.Conn) {
		defer socket.Close()

		// The client never sends data; a read failing is how we
		// learn it has gone away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := socket.NextReader(); err != nil {
					return
				}
			}
		}()

		events := make(chan params.MigrationEvent)
		forward := func(topic string, data map[string]interface{}) {
			select {
			case events <- params.MigrationEvent{Topic: topic, Data: data}:
			case <-s.stop:
			case <-gone:
			}
		}
		for _, topic := range []string{
			coremigration.OwnershipAcceptedTopic,
			coremigration.CompletedTopic,
		} {
			unsubscribe, err := s.config.Hub.Subscribe(topic, forward)
			if err != nil {
				logger.Errorf("subscribing to %q: %v", topic, err)
				return
			}
			defer unsubscribe()
		}

		// Sent only once the subscriptions are in place, so a client
		// that has read it cannot miss events it then causes.
		if err := sendInitialError(socket, nil); err != nil {
			logger.Errorf("failed to send initial message: %v", err)
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-gone:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := socket.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					// This error is expected if the other end goes
					// away. By returning we close the socket through
					// the defer call.
					logger.Debugf("failed to write ping: %s", err)
					return
				}
			case event := <-events:
				logger.Tracef("topic: %q, data: %v", event.Topic, event.Data)
				if err := socket.WriteJSON(event); err != nil {
					logger.Errorf("streaming event: %v", err)
					return
				}
			}
		}
	}
	websocketServer(w, req, handler)
}

// parseAddress canonicalizes a request address. The empty string
// stays unset; anything else must be well formed.
func parseAddress(value string) (asset.Address, error) {
	if value == "" {
		return asset.Zero, nil
	}
	address, err := asset.ParseAddress(value)
	if err != nil {
		return asset.Zero, errors.Trace(err)
	}
	return address, nil
}

func emptyIfZero(address asset.Address) string {
	if address.IsZero() {
		return ""
	}
	return address.String()
}

func readJSON(req *http.Request, into interface{}) error {
	defer req.Body.Close()
	if err := json.NewDecoder(req.Body).Decode(into); err != nil {
		return errors.NewBadRequest(err, "parsing request body")
	}
	return nil
}

func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("writing response: %v", err)
	}
}

func sendError(w http.ResponseWriter, err error) {
	e := ServerError(err)
	sendJSON(w, statusFor(e.Code), params.ErrorResult{Error: e})
}
