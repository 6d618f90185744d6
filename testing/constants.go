// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"time"
)

const (
	// LongWait is used when something should have already happened,
	// or happens quickly. The long wait is a safety net to catch the
	// case where it does not happen, to avoid a deadlocked test.
	LongWait = 10 * time.Second

	// ShortWait is a reasonable amount of time to block waiting for
	// something that should not actually happen, for example making
	// sure a channel stays empty for a little while.
	ShortWait = 50 * time.Millisecond
)
