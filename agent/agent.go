// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package agent

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/poolferry/poolferry/apiserver"
	"github.com/poolferry/poolferry/core/asset"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	converterservice "github.com/poolferry/poolferry/domain/converter/service"
	converterstate "github.com/poolferry/poolferry/domain/converter/state"
	featuresstate "github.com/poolferry/poolferry/domain/features/state"
	guardservice "github.com/poolferry/poolferry/domain/guard/service"
	ownedstate "github.com/poolferry/poolferry/domain/owned/state"
	"github.com/poolferry/poolferry/domain/registry"
	registryerrors "github.com/poolferry/poolferry/domain/registry/errors"
	registrystate "github.com/poolferry/poolferry/domain/registry/state"
	"github.com/poolferry/poolferry/domain/schema"
	tokenstate "github.com/poolferry/poolferry/domain/token/state"
	"github.com/poolferry/poolferry/internal/database"
	"github.com/poolferry/poolferry/internal/worker/eventlog"
	"github.com/poolferry/poolferry/internal/worker/httpserver"
	"github.com/poolferry/poolferry/migration"
	"github.com/poolferry/poolferry/pubsub/centralhub"
	"github.com/poolferry/poolferry/version"
)

var logger = loggo.GetLogger("poolferry.agent")

// Agent wires the ledger database, domain services, orchestrator and
// workers into a running daemon.
type Agent struct {
	config *Config
	db     *database.Database
	runner *worker.Runner
	hub    *pubsub.StructuredHub
}

// New assembles an agent from the configuration and starts its
// workers.
func New(config *Config) (*Agent, error) {
	if config == nil {
		return nil, errors.NotValidf("nil config")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(config.LoggingConfig()); err != nil {
		return nil, errors.Annotate(err, "configuring loggers")
	}

	db, err := database.Open(config.DBPath())
	if err != nil {
		return nil, errors.Trace(err)
	}
	a, err := assemble(config, db)
	if err != nil {
		_ = db.Close()
		return nil, errors.Trace(err)
	}
	return a, nil
}

func assemble(config *Config, db *database.Database) (*Agent, error) {
	ctx := context.Background()
	if err := db.ApplyDeltas(ctx, schema.LedgerDDL()); err != nil {
		return nil, errors.Trace(err)
	}
	factory := func() (coredatabase.TxnRunner, error) {
		return db, nil
	}

	ownedSt := ownedstate.NewState(factory)
	converterSt := converterstate.NewState(factory)
	tokenSt := tokenstate.NewState(factory)
	featureSt := featuresstate.NewState(factory)
	registrySt := registrystate.NewState(factory)

	origin := config.OrchestratorAddress()
	factoryAddress, wrapper, err := resolveContracts(ctx, factory, registrySt, config)
	if err != nil {
		return nil, errors.Trace(err)
	}

	provisioner, err := converterservice.NewFactory(factoryAddress, version.Current.String(), converterSt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	hub := centralhub.New(origin)

	orchestrator, err := migration.NewOrchestrator(migration.Config{
		Origin:           origin,
		Wrapper:          wrapper,
		TxnRunnerFactory: factory,
		Owned:            ownedSt,
		Converters:       converterSt,
		Tokens:           tokenSt,
		Factory:          provisioner,
		Features:         featureSt,
		Hub:              hub,
		Clock:            clock.WallClock,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	collector := eventlog.NewMetricsCollector()
	registerer := prometheus.NewPedanticRegistry()
	if err := registerer.Register(collector); err != nil {
		return nil, errors.Annotate(err, "registering metrics collector")
	}

	srv, err := apiserver.NewServer(apiserver.Config{
		Orchestrator: orchestrator,
		Converters:   converterservice.NewService(factory, converterSt, ownedSt, tokenSt),
		Guard:        guardservice.NewService(factory, ownedSt, tokenSt),
		Hub:          hub,
		Gatherer:     registerer,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	runner := worker.NewRunner(worker.RunnerParams{
		// A dead worker takes the whole daemon down; whatever
		// supervises the daemon decides about restarts.
		IsFatal: func(error) bool { return true },
		Clock:   clock.WallClock,
	})
	if err := runner.StartWorker("httpserver", func() (worker.Worker, error) {
		return httpserver.NewWorker(httpserver.Config{
			Address: config.APIAddress(),
			Server:  srv,
		})
	}); err != nil {
		return nil, errors.Trace(err)
	}
	if err := runner.StartWorker("eventlog", func() (worker.Worker, error) {
		return eventlog.NewWorker(eventlog.Config{
			Hub:       hub,
			Collector: collector,
		})
	}); err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("agent started as orchestrator %q, version %s", origin, version.Current)
	return &Agent{
		config: config,
		db:     db,
		runner: runner,
		hub:    hub,
	}, nil
}

// The factory and the native wrapper are found through the registry.
// A missing factory entry is self-repaired with a fresh address, so a
// bare daemon can provision converters without a bootstrap document.
// The upgrader entry is kept pointing at this agent.
func resolveContracts(
	ctx context.Context,
	factory coredatabase.TxnRunnerFactory,
	registrySt *registrystate.State,
	config *Config,
) (factoryAddress, wrapper asset.Address, err error) {
	wrapper = config.WrapperAddress()
	st := domain.NewStateBase(factory)
	err = st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		var err error
		factoryAddress, err = registrySt.Resolve(ctx, registry.ConverterFactory)
		if errors.Is(err, registryerrors.NameNotFound) {
			if factoryAddress, err = asset.NewAddress(); err != nil {
				return errors.Trace(err)
			}
			logger.Infof("registering converter factory at %q", factoryAddress)
			if err := registrySt.Register(ctx, registry.ConverterFactory, factoryAddress); err != nil {
				return errors.Trace(err)
			}
		} else if err != nil {
			return errors.Trace(err)
		}

		if wrapper.IsZero() {
			wrapper, err = registrySt.Resolve(ctx, registry.NativeWrapper)
			if errors.Is(err, registryerrors.NameNotFound) {
				logger.Warningf("no native wrapper configured or registered; wrapped native reserves will be treated as standard tokens")
				wrapper = asset.Zero
			} else if err != nil {
				return errors.Trace(err)
			}
		}

		return errors.Trace(registrySt.Register(ctx, registry.ConverterUpgrader, config.OrchestratorAddress()))
	})
	if err != nil {
		return "", "", errors.Trace(err)
	}
	return factoryAddress, wrapper, nil
}

// Kill stops the agent's workers.
func (a *Agent) Kill() {
	a.runner.Kill()
}

// Wait blocks until the workers have stopped, then closes the
// database.
func (a *Agent) Wait() error {
	err := a.runner.Wait()
	if closeErr := a.db.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return errors.Trace(err)
}

// APIURL reports the URL the API server is listening on, blocking
// until the worker has started. It is how the effective address is
// discovered when the configured port was zero.
func (a *Agent) APIURL() (string, error) {
	w, err := a.runner.Worker("httpserver", nil)
	if err != nil {
		return "", errors.Trace(err)
	}
	return w.(*httpserver.Worker).URL(), nil
}
