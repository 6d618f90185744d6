// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package migration implements the converter migration orchestrator.
// A migration drains a converter of everything that makes it itself,
// its reserves, fee, balances and pool token, into a freshly
// provisioned replacement, then offers control of both back to the
// original administrator. The whole sequence runs inside one ledger
// transaction: either every step lands or none do.
package migration

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coredatabase "github.com/poolferry/poolferry/core/database"
	coremigration "github.com/poolferry/poolferry/core/migration"
	"github.com/poolferry/poolferry/domain"
	"github.com/poolferry/poolferry/domain/features"
	"github.com/poolferry/poolferry/domain/owned"
	ownederrors "github.com/poolferry/poolferry/domain/owned/errors"
)

var logger = loggo.GetLogger("poolferry.migration")

// Owned drives the two phase ownership machinery on the entities a
// migration touches.
type Owned interface {
	Entity(ctx domain.AtomicContext, address asset.Address) (owned.Entity, error)
	TransferOwnership(ctx domain.AtomicContext, caller, address, newOwner asset.Address) error
	AcceptOwnership(ctx domain.AtomicContext, caller, address asset.Address) error
}

// Converters reads and configures converter records.
type Converters interface {
	Settings(ctx domain.AtomicContext, address asset.Address) (converter.Settings, error)
	AddReserve(ctx domain.AtomicContext, caller, address, reserveAsset asset.Address, weight int64) error
	SetVirtualBalance(ctx domain.AtomicContext, caller, address, reserveAsset asset.Address, balance int64) error
	SetFee(ctx domain.AtomicContext, caller, address asset.Address, fee int64) error
	SetWhitelist(ctx domain.AtomicContext, caller, address, whitelist asset.Address) error
}

// Tokens moves value between holders.
type Tokens interface {
	Balance(ctx domain.AtomicContext, assetID, holder asset.Address) (int64, error)
	Withdraw(ctx domain.AtomicContext, caller, holder, assetID, to asset.Address, amount int64) error
	Unwrap(ctx domain.AtomicContext, caller, wrapper, holder, to asset.Address, amount int64) error
}

// Factory provisions replacement converters.
type Factory interface {
	Create(ctx domain.AtomicContext, requester, token asset.Address, maxFee int64) (asset.Address, error)
}

// Features probes optional converter capabilities.
type Features interface {
	Supports(ctx domain.AtomicContext, address asset.Address, feature features.Feature) (bool, error)
}

// Config holds the dependencies and identity of an orchestrator.
type Config struct {
	// Origin is the orchestrator's own ledger identity. Converters
	// due for upgrade nominate it as their next administrator.
	Origin asset.Address

	// Wrapper is the wrapped native token contract, or zero when
	// the deployment has none. The native asset reaches converters
	// in three shapes, the sentinel, wrapped balances and plain
	// tokens, and the wrapper identity is what tells them apart.
	Wrapper asset.Address

	TxnRunnerFactory coredatabase.TxnRunnerFactory
	Owned            Owned
	Converters       Converters
	Tokens           Tokens
	Factory          Factory
	Features         Features
	Hub              *pubsub.StructuredHub
	Clock            clock.Clock
}

// Validate returns an error if the config cannot be relied upon to
// run migrations.
func (config Config) Validate() error {
	if config.Origin.IsZero() {
		return errors.NotValidf("zero Origin")
	}
	if config.TxnRunnerFactory == nil {
		return errors.NotValidf("nil TxnRunnerFactory")
	}
	if config.Owned == nil {
		return errors.NotValidf("nil Owned")
	}
	if config.Converters == nil {
		return errors.NotValidf("nil Converters")
	}
	if config.Tokens == nil {
		return errors.NotValidf("nil Tokens")
	}
	if config.Factory == nil {
		return errors.NotValidf("nil Factory")
	}
	if config.Features == nil {
		return errors.NotValidf("nil Features")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Orchestrator migrates converters onto the current implementation
// generation.
type Orchestrator struct {
	config Config
	st     *domain.StateBase
}

// NewOrchestrator returns an orchestrator using the supplied config.
func NewOrchestrator(config Config) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Orchestrator{
		config: config,
		st:     domain.NewStateBase(config.TxnRunnerFactory),
	}, nil
}

// Upgrade migrates the calling converter, which must have nominated
// the orchestrator as its next administrator beforehand.
func (o *Orchestrator) Upgrade(ctx context.Context, caller asset.Address, versionTag string) (coremigration.Report, error) {
	return o.run(ctx, caller, versionTag)
}

// UpgradeOld migrates the named converter. Anyone may call this; the
// outstanding nomination on the converter is the authority that
// matters. It exists for converter generations that predate the self
// triggered upgrade path.
func (o *Orchestrator) UpgradeOld(ctx context.Context, caller, oldInstance asset.Address, versionTag string) (coremigration.Report, error) {
	logger.Debugf("%q requested upgrade of %q", caller, oldInstance)
	return o.run(ctx, oldInstance, versionTag)
}

func (o *Orchestrator) run(ctx context.Context, oldInstance asset.Address, versionTag string) (coremigration.Report, error) {
	if oldInstance.IsZero() {
		return coremigration.Report{}, errors.NotValidf("upgrading the zero address")
	}
	if versionTag != "" {
		// Accepted for compatibility with older converters; the
		// upgrade path no longer varies by version.
		logger.Debugf("ignoring version tag %q for %q", versionTag, oldInstance)
	}

	start := o.config.Clock.Now()
	m := &migration{
		config: o.config,
		phase:  coremigration.NONE,
	}
	err := o.st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		return errors.Trace(m.run(ctx, oldInstance))
	})
	if err != nil {
		logger.Errorf("migration of %q failed: %v", oldInstance, err)
		return coremigration.Report{}, errors.Trace(err)
	}

	// Events go out only for work that actually committed.
	for _, queued := range m.events {
		if _, err := o.config.Hub.Publish(queued.topic, queued.payload); err != nil {
			logger.Warningf("publishing %q: %v", queued.topic, err)
		}
	}
	logger.Infof("migrated %q to %q with %d reserves in %s",
		m.report.OldInstance, m.report.NewInstance, m.report.Reserves,
		o.config.Clock.Now().Sub(start))
	return m.report, nil
}

// migration tracks one invocation of the core sequence.
type migration struct {
	config Config
	phase  coremigration.Phase
	report coremigration.Report
	events []event
}

type event struct {
	topic   string
	payload interface{}
}

func (m *migration) run(ctx domain.AtomicContext, oldInstance asset.Address) error {
	origin := m.config.Origin

	// The original administrator is captured before anything changes
	// hands; control goes back to them at the end.
	entity, err := m.config.Owned.Entity(ctx, oldInstance)
	if err != nil {
		return errors.Trace(err)
	}
	admin := entity.Owner

	if err := m.config.Owned.AcceptOwnership(ctx, origin, oldInstance); err != nil {
		return errors.Annotatef(err, "accepting ownership of %q", oldInstance)
	}
	m.queue(coremigration.OwnershipAcceptedTopic, coremigration.OwnershipAccepted{
		Instance: oldInstance,
		NewAdmin: origin,
	})
	if err := m.moveTo(coremigration.OWNERSHIPACCEPTED); err != nil {
		return errors.Trace(err)
	}

	// The replacement is bound to the same pool token and fee
	// ceiling. The factory nominates the requester, so ownership
	// must be accepted here too.
	old, err := m.config.Converters.Settings(ctx, oldInstance)
	if err != nil {
		return errors.Trace(err)
	}
	newInstance, err := m.config.Factory.Create(ctx, origin, old.Token, old.MaxFee)
	if err != nil {
		return errors.Annotate(err, "provisioning replacement")
	}
	if err := m.config.Owned.AcceptOwnership(ctx, origin, newInstance); err != nil {
		return errors.Annotatef(err, "accepting ownership of %q", newInstance)
	}
	if err := m.copyWhitelist(ctx, old, newInstance); err != nil {
		return errors.Trace(err)
	}
	if err := m.moveTo(coremigration.PROVISIONED); err != nil {
		return errors.Trace(err)
	}

	// One classification per reserve drives both the copy and the
	// transfer loops, so the two cannot drift apart.
	plan := make([]asset.Kind, len(old.Reserves))
	for i, r := range old.Reserves {
		plan[i] = asset.Classify(r.Asset, m.config.Wrapper)
	}

	if err := m.copyReserves(ctx, old, newInstance, plan); err != nil {
		return errors.Trace(err)
	}
	if err := m.moveTo(coremigration.RESERVESCOPIED); err != nil {
		return errors.Trace(err)
	}

	if err := m.config.Converters.SetFee(ctx, origin, newInstance, old.Fee); err != nil {
		return errors.Annotate(err, "copying conversion fee")
	}
	if err := m.moveTo(coremigration.FEECOPIED); err != nil {
		return errors.Trace(err)
	}

	if err := m.transferBalances(ctx, old, newInstance, plan); err != nil {
		return errors.Trace(err)
	}
	if err := m.moveTo(coremigration.BALANCESTRANSFERRED); err != nil {
		return errors.Trace(err)
	}

	handed, err := m.handOffToken(ctx, old, newInstance)
	if err != nil {
		return errors.Trace(err)
	}
	if handed {
		if err := m.moveTo(coremigration.TOKENHANDEDOFF); err != nil {
			return errors.Trace(err)
		}
	}

	// Control is offered back as a nomination on both converters.
	// Accepting is the administrator's deliberate final step.
	if err := m.config.Owned.TransferOwnership(ctx, origin, oldInstance, admin); err != nil {
		return errors.Annotatef(err, "returning ownership of %q", oldInstance)
	}
	if err := m.config.Owned.TransferOwnership(ctx, origin, newInstance, admin); err != nil {
		return errors.Annotatef(err, "returning ownership of %q", newInstance)
	}
	if err := m.moveTo(coremigration.OWNERSHIPRETURNED); err != nil {
		return errors.Trace(err)
	}

	m.queue(coremigration.CompletedTopic, coremigration.Completed{
		OldInstance: oldInstance,
		NewInstance: newInstance,
	})
	if err := m.moveTo(coremigration.DONE); err != nil {
		return errors.Trace(err)
	}
	m.report = coremigration.Report{
		OldInstance: oldInstance,
		NewInstance: newInstance,
		Admin:       admin,
		Reserves:    len(old.Reserves),
		Phase:       m.phase,
	}
	return nil
}

func (m *migration) copyWhitelist(ctx domain.AtomicContext, old converter.Settings, newInstance asset.Address) error {
	supported, err := m.config.Features.Supports(ctx, old.Address, features.ConversionWhitelist)
	if err != nil {
		return errors.Trace(err)
	}
	if !supported || old.Whitelist.IsZero() {
		return nil
	}
	err = m.config.Converters.SetWhitelist(ctx, m.config.Origin, newInstance, old.Whitelist)
	return errors.Annotate(err, "copying whitelist")
}

func (m *migration) copyReserves(ctx domain.AtomicContext, old converter.Settings, newInstance asset.Address, plan []asset.Kind) error {
	origin := m.config.Origin
	for i, r := range old.Reserves {
		target := r.Asset
		if plan[i] != asset.KindStandard {
			// Wrapped and unwrapped native both land in the new
			// converter's single native reserve slot.
			target = asset.Native
		}
		if err := m.config.Converters.AddReserve(ctx, origin, newInstance, target, r.Weight); err != nil {
			return errors.Annotatef(err, "copying reserve %q", r.Asset)
		}
		if r.VirtualBalance == 0 {
			// Zero means unset, and unset is not copied.
			continue
		}
		if err := m.config.Converters.SetVirtualBalance(ctx, origin, newInstance, target, r.VirtualBalance); err != nil {
			return errors.Annotatef(err, "copying virtual balance of %q", r.Asset)
		}
	}
	return nil
}

func (m *migration) transferBalances(ctx domain.AtomicContext, old converter.Settings, newInstance asset.Address, plan []asset.Kind) error {
	origin := m.config.Origin
	for i, r := range old.Reserves {
		held, err := m.config.Tokens.Balance(ctx, r.Asset, old.Address)
		if err != nil {
			return errors.Trace(err)
		}
		if held == 0 {
			continue
		}
		switch plan[i] {
		case asset.KindWrappedNative:
			// The old converter cannot unwrap and forward in one
			// call, so the wrapped balance comes through here.
			if err := m.config.Tokens.Withdraw(ctx, origin, old.Address, r.Asset, origin, held); err != nil {
				return errors.Annotatef(err, "withdrawing wrapped native from %q", old.Address)
			}
			if err := m.config.Tokens.Unwrap(ctx, origin, r.Asset, origin, newInstance, held); err != nil {
				return errors.Annotatef(err, "unwrapping for %q", newInstance)
			}
		default:
			if err := m.config.Tokens.Withdraw(ctx, origin, old.Address, r.Asset, newInstance, held); err != nil {
				return errors.Annotatef(err, "transferring %q balance", r.Asset)
			}
		}
	}
	return nil
}

func (m *migration) handOffToken(ctx domain.AtomicContext, old converter.Settings, newInstance asset.Address) (bool, error) {
	entity, err := m.config.Owned.Entity(ctx, old.Token)
	if errors.Is(err, ownederrors.EntityNotFound) {
		// The pool token is not an owned entity, so there is
		// nothing to hand over.
		return false, nil
	} else if err != nil {
		return false, errors.Trace(err)
	}
	if entity.Owner != old.Address {
		return false, nil
	}
	if err := m.config.Owned.TransferOwnership(ctx, old.Address, old.Token, newInstance); err != nil {
		return false, errors.Annotatef(err, "nominating %q on token %q", newInstance, old.Token)
	}
	if err := m.config.Owned.AcceptOwnership(ctx, newInstance, old.Token); err != nil {
		return false, errors.Annotatef(err, "accepting token %q", old.Token)
	}
	return true, nil
}

func (m *migration) queue(topic string, payload interface{}) {
	m.events = append(m.events, event{topic: topic, payload: payload})
}

func (m *migration) moveTo(phase coremigration.Phase) error {
	if !m.phase.CanTransitionTo(phase) {
		return errors.Errorf("programming error: cannot move from %s to %s", m.phase, phase)
	}
	logger.Debugf("phase %s -> %s", m.phase, phase)
	m.phase = phase
	return nil
}
