// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package agent

import (
	"context"
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"

	"github.com/poolferry/poolferry/core/asset"
	"github.com/poolferry/poolferry/core/converter"
	coredatabase "github.com/poolferry/poolferry/core/database"
	"github.com/poolferry/poolferry/domain"
	converterstate "github.com/poolferry/poolferry/domain/converter/state"
	"github.com/poolferry/poolferry/domain/features"
	featuresstate "github.com/poolferry/poolferry/domain/features/state"
	"github.com/poolferry/poolferry/domain/owned"
	ownedstate "github.com/poolferry/poolferry/domain/owned/state"
	"github.com/poolferry/poolferry/domain/registry"
	registrystate "github.com/poolferry/poolferry/domain/registry/state"
	"github.com/poolferry/poolferry/domain/schema"
	"github.com/poolferry/poolferry/domain/token"
	tokenstate "github.com/poolferry/poolferry/domain/token/state"
	"github.com/poolferry/poolferry/internal/database"
)

// LedgerDocument describes an initial ledger state. It is what the
// bootstrap command applies to an empty ledger.
type LedgerDocument struct {
	Registry   map[string]string   `yaml:"registry,omitempty"`
	Tokens     []TokenDocument     `yaml:"tokens,omitempty"`
	Converters []ConverterDocument `yaml:"converters,omitempty"`
	Guards     []GuardDocument     `yaml:"guards,omitempty"`
	Balances   []BalanceDocument   `yaml:"balances,omitempty"`
	Features   []FeatureDocument   `yaml:"features,omitempty"`
}

// TokenDocument registers one token contract.
type TokenDocument struct {
	Address string `yaml:"address"`
	Symbol  string `yaml:"symbol"`
	Kind    string `yaml:"kind"`
	Owner   string `yaml:"owner"`
}

// ConverterDocument registers one converter with its reserves.
type ConverterDocument struct {
	Address      string            `yaml:"address"`
	Owner        string            `yaml:"owner"`
	PendingOwner string            `yaml:"pending-owner,omitempty"`
	Token        string            `yaml:"token"`
	Version      string            `yaml:"version"`
	MaxFee       int64             `yaml:"max-fee"`
	Fee          int64             `yaml:"fee,omitempty"`
	Whitelist    string            `yaml:"whitelist,omitempty"`
	Reserves     []ReserveDocument `yaml:"reserves,omitempty"`
}

// ReserveDocument configures one converter reserve.
type ReserveDocument struct {
	Asset          string `yaml:"asset"`
	Weight         int64  `yaml:"weight"`
	VirtualBalance int64  `yaml:"virtual-balance,omitempty"`
}

// GuardDocument registers one resource access guard.
type GuardDocument struct {
	Address string `yaml:"address"`
	Owner   string `yaml:"owner"`
}

// BalanceDocument credits a holder with an opening balance.
type BalanceDocument struct {
	Asset  string `yaml:"asset"`
	Holder string `yaml:"holder"`
	Amount int64  `yaml:"amount"`
}

// FeatureDocument advertises capability flags for one contract.
type FeatureDocument struct {
	Contract string   `yaml:"contract"`
	Features []string `yaml:"features"`
}

// ReadLedgerDocument loads a ledger document from the YAML file at
// path. Unknown fields are rejected, which catches most typos before
// they silently bootstrap an incomplete ledger.
func ReadLedgerDocument(path string) (*LedgerDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading ledger document")
	}
	var doc LedgerDocument
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, errors.Annotatef(err, "parsing ledger document %q", path)
	}
	return &doc, nil
}

// Bootstrap applies the ledger document to the database named in the
// configuration, creating the schema first if required. The whole
// document lands in a single transaction.
func Bootstrap(ctx context.Context, config *Config, doc *LedgerDocument) error {
	if err := config.Validate(); err != nil {
		return errors.Trace(err)
	}
	db, err := database.Open(config.DBPath())
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()

	if err := db.ApplyDeltas(ctx, schema.LedgerDDL()); err != nil {
		return errors.Trace(err)
	}
	factory := func() (coredatabase.TxnRunner, error) {
		return db, nil
	}
	st := domain.NewStateBase(factory)
	apply := documentApplier{
		owned:      ownedstate.NewState(factory),
		converters: converterstate.NewState(factory),
		tokens:     tokenstate.NewState(factory),
		features:   featuresstate.NewState(factory),
		registry:   registrystate.NewState(factory),
	}
	return errors.Trace(st.RunAtomic(ctx, func(ctx domain.AtomicContext) error {
		return apply.run(ctx, doc)
	}))
}

type documentApplier struct {
	owned      *ownedstate.State
	converters *converterstate.State
	tokens     *tokenstate.State
	features   *featuresstate.State
	registry   *registrystate.State
}

func (a documentApplier) run(ctx domain.AtomicContext, doc *LedgerDocument) error {
	for name, value := range doc.Registry {
		address, err := asset.ParseAddress(value)
		if err != nil {
			return errors.Annotatef(err, "registry entry %q", name)
		}
		if err := a.registry.Register(ctx, registry.Name(name), address); err != nil {
			return errors.Annotatef(err, "registry entry %q", name)
		}
	}

	for _, t := range doc.Tokens {
		if err := a.applyToken(ctx, t); err != nil {
			return errors.Annotatef(err, "token %q", t.Address)
		}
	}
	for _, conv := range doc.Converters {
		if err := a.applyConverter(ctx, conv); err != nil {
			return errors.Annotatef(err, "converter %q", conv.Address)
		}
	}
	for _, g := range doc.Guards {
		if err := a.applyGuard(ctx, g); err != nil {
			return errors.Annotatef(err, "guard %q", g.Address)
		}
	}
	for _, b := range doc.Balances {
		if err := a.applyBalance(ctx, b); err != nil {
			return errors.Annotatef(err, "balance of %q for %q", b.Asset, b.Holder)
		}
	}
	for _, f := range doc.Features {
		if err := a.applyFeatures(ctx, f); err != nil {
			return errors.Annotatef(err, "features of %q", f.Contract)
		}
	}
	return nil
}

func (a documentApplier) applyToken(ctx domain.AtomicContext, doc TokenDocument) error {
	address, err := asset.ParseAddress(doc.Address)
	if err != nil {
		return errors.Trace(err)
	}
	owner, err := asset.ParseAddress(doc.Owner)
	if err != nil {
		return errors.Annotate(err, "owner")
	}
	return errors.Trace(a.tokens.CreateToken(ctx, token.Token{
		Address: address,
		Symbol:  doc.Symbol,
		Kind:    asset.Kind(doc.Kind),
		Owner:   owner,
	}))
}

func (a documentApplier) applyConverter(ctx domain.AtomicContext, doc ConverterDocument) error {
	settings := converter.Settings{
		Version: doc.Version,
		MaxFee:  doc.MaxFee,
	}
	var err error
	if settings.Address, err = asset.ParseAddress(doc.Address); err != nil {
		return errors.Trace(err)
	}
	if settings.Owner, err = asset.ParseAddress(doc.Owner); err != nil {
		return errors.Annotate(err, "owner")
	}
	if settings.Token, err = asset.ParseAddress(doc.Token); err != nil {
		return errors.Annotate(err, "token")
	}
	if doc.PendingOwner != "" {
		if settings.PendingOwner, err = asset.ParseAddress(doc.PendingOwner); err != nil {
			return errors.Annotate(err, "pending-owner")
		}
	}
	if err := a.converters.Create(ctx, settings); err != nil {
		return errors.Trace(err)
	}

	for _, r := range doc.Reserves {
		reserveAsset, err := asset.ParseAddress(r.Asset)
		if err != nil {
			return errors.Annotatef(err, "reserve %q", r.Asset)
		}
		if err := a.converters.AddReserve(ctx, settings.Owner, settings.Address, reserveAsset, r.Weight); err != nil {
			return errors.Annotatef(err, "reserve %q", r.Asset)
		}
		if r.VirtualBalance != 0 {
			if err := a.converters.SetVirtualBalance(ctx, settings.Owner, settings.Address, reserveAsset, r.VirtualBalance); err != nil {
				return errors.Annotatef(err, "reserve %q", r.Asset)
			}
		}
	}
	if doc.Fee != 0 {
		if err := a.converters.SetFee(ctx, settings.Owner, settings.Address, doc.Fee); err != nil {
			return errors.Trace(err)
		}
	}
	if doc.Whitelist != "" {
		whitelist, err := asset.ParseAddress(doc.Whitelist)
		if err != nil {
			return errors.Annotate(err, "whitelist")
		}
		if err := a.converters.SetWhitelist(ctx, settings.Owner, settings.Address, whitelist); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (a documentApplier) applyGuard(ctx domain.AtomicContext, doc GuardDocument) error {
	address, err := asset.ParseAddress(doc.Address)
	if err != nil {
		return errors.Trace(err)
	}
	owner, err := asset.ParseAddress(doc.Owner)
	if err != nil {
		return errors.Annotate(err, "owner")
	}
	return errors.Trace(a.owned.CreateEntity(ctx, owned.Entity{
		Address: address,
		Kind:    owned.KindGuard,
		Owner:   owner,
	}))
}

// Opening balances are credited by the issuer: the token's
// administrator for contract tokens, nobody in particular for the
// native asset.
func (a documentApplier) applyBalance(ctx domain.AtomicContext, doc BalanceDocument) error {
	assetID, err := asset.ParseAddress(doc.Asset)
	if err != nil {
		return errors.Trace(err)
	}
	holder, err := asset.ParseAddress(doc.Holder)
	if err != nil {
		return errors.Annotate(err, "holder")
	}

	caller := holder
	if assetID != asset.Native {
		tok, err := a.tokens.Token(ctx, assetID)
		if err != nil {
			return errors.Trace(err)
		}
		caller = tok.Owner
	}
	return errors.Trace(a.tokens.Issue(ctx, caller, assetID, holder, doc.Amount))
}

func (a documentApplier) applyFeatures(ctx domain.AtomicContext, doc FeatureDocument) error {
	contract, err := asset.ParseAddress(doc.Contract)
	if err != nil {
		return errors.Trace(err)
	}
	for _, name := range doc.Features {
		feature, known := features.ParseFeature(name)
		if !known {
			return errors.NotValidf("feature %q", name)
		}
		if err := a.features.Enable(ctx, contract, feature); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
