// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration

// Phase values specify converter migration phases.
type Phase int

// Enumerate all possible migration phases.
const (
	UNKNOWN Phase = iota
	NONE
	OWNERSHIPACCEPTED
	PROVISIONED
	RESERVESCOPIED
	FEECOPIED
	BALANCESTRANSFERRED
	TOKENHANDEDOFF
	OWNERSHIPRETURNED
	DONE
	ABORT
)

var phaseNames = []string{
	"UNKNOWN",
	"NONE",
	"OWNERSHIPACCEPTED",
	"PROVISIONED",
	"RESERVESCOPIED",
	"FEECOPIED",
	"BALANCESTRANSFERRED",
	"TOKENHANDEDOFF",
	"OWNERSHIPRETURNED",
	"DONE",
	"ABORT",
}

// String returns the name of a migration phase constant.
func (p Phase) String() string {
	i := int(p)
	if i >= 0 && i < len(phaseNames) {
		return phaseNames[i]
	}
	return "UNKNOWN"
}

// CanTransitionTo returns true if the given phase is a valid next
// migration phase.
func (p Phase) CanTransitionTo(targetPhase Phase) bool {
	nextPhases, exists := validTransitions[p]
	if !exists {
		return false
	}
	for _, nextPhase := range nextPhases {
		if nextPhase == targetPhase {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the phase is one which signifies the end
// of a migration.
func (p Phase) IsTerminal() bool {
	for _, phase := range terminalPhases {
		if p == phase {
			return true
		}
	}
	return false
}

var terminalPhases = []Phase{
	DONE,
	ABORT,
}

// A migration runs to completion inside a single ledger transaction,
// so there is no recovery path out of ABORT. A failed attempt rolls
// back completely and a fresh invocation starts again from NONE.
// TOKENHANDEDOFF is skipped when the retiring converter does not
// administer its pool token.
var validTransitions = map[Phase][]Phase{
	NONE:                {OWNERSHIPACCEPTED},
	OWNERSHIPACCEPTED:   {PROVISIONED, ABORT},
	PROVISIONED:         {RESERVESCOPIED, ABORT},
	RESERVESCOPIED:      {FEECOPIED, ABORT},
	FEECOPIED:           {BALANCESTRANSFERRED, ABORT},
	BALANCESTRANSFERRED: {TOKENHANDEDOFF, OWNERSHIPRETURNED, ABORT},
	TOKENHANDEDOFF:      {OWNERSHIPRETURNED, ABORT},
	OWNERSHIPRETURNED:   {DONE},
}

// ParsePhase converts a string migration phase name to its constant
// value.
func ParsePhase(target string) (Phase, bool) {
	for p, name := range phaseNames {
		if target == name {
			return Phase(p), true
		}
	}
	return UNKNOWN, false
}
