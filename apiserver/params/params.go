// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params defines the wire structures exchanged between the
// API server and its clients. Addresses travel as canonical 0x
// prefixed strings.
package params

// MigrationRequest asks the orchestrator to upgrade a converter. A
// request without an old converter upgrades the caller itself, which
// is the path a current generation converter uses. The legacy path
// names the converter explicitly; the outstanding nomination on it is
// the authority that matters, not the caller.
type MigrationRequest struct {
	Caller       string `json:"caller"`
	OldConverter string `json:"old-converter,omitempty"`
	Version      string `json:"version,omitempty"`
}

// MigrationResult reports a completed migration.
type MigrationResult struct {
	OldInstance string `json:"old-instance"`
	NewInstance string `json:"new-instance"`
	Admin       string `json:"admin"`
	Reserves    int    `json:"reserves"`
	Phase       string `json:"phase"`
}

// TransferOwnershipRequest nominates a new administrator for a
// converter.
type TransferOwnershipRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new-owner"`
}

// AcceptOwnershipRequest accepts an outstanding nomination on a
// converter.
type AcceptOwnershipRequest struct {
	Caller string `json:"caller"`
}

// WithdrawRequest sweeps funds out of a guarded entity.
type WithdrawRequest struct {
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

// ReserveResult is one reserve position of a converter, including
// the actual balance held against it.
type ReserveResult struct {
	Asset          string `json:"asset"`
	Weight         int64  `json:"weight"`
	VirtualBalance int64  `json:"virtual-balance,omitempty"`
	Balance        int64  `json:"balance"`
	Active         bool   `json:"active"`
}

// ConverterResult describes a converter's full configuration and
// holdings.
type ConverterResult struct {
	Address      string          `json:"address"`
	Owner        string          `json:"owner"`
	PendingOwner string          `json:"pending-owner,omitempty"`
	Token        string          `json:"token"`
	Version      string          `json:"version"`
	MaxFee       int64           `json:"max-fee"`
	Fee          int64           `json:"fee"`
	Whitelist    string          `json:"whitelist,omitempty"`
	Reserves     []ReserveResult `json:"reserves"`
}

// ErrorResult holds the error, if any, of an operation with no other
// results. It is also the first message on every event stream, so a
// client knows whether the stream is live before events arrive.
type ErrorResult struct {
	Error *Error `json:"error,omitempty"`
}

// MigrationEvent is one hub notification forwarded on the event
// stream.
type MigrationEvent struct {
	Topic string                 `json:"topic"`
	Data  map[string]interface{} `json:"data"`
}
