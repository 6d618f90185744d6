// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package version holds the current release number. It is what the
// daemon and CLI report, and the build version the factory stamps on
// the converters it provisions.
package version

import (
	semversion "github.com/juju/version/v2"
)

// The presence and format of this constant is very important. The
// packaging recipes use this value for the version number of the
// release.
const version = "0.6.0"

// Current is the currently running version.
var Current = semversion.MustParse(version)
