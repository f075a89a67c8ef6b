// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging holds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Components that need structured fields take
// a *clog.Logger in their constructor and default to L.
var L = clog.NewWithOptions(os.Stderr, clog.Options{ReportTimestamp: true})

// Setup configures L from the log.level setting. Unknown levels fall back to
// info so a typo in the config file never silences errors.
func Setup(w io.Writer, level string, verbose bool) {
	L = clog.NewWithOptions(w, clog.Options{ReportTimestamp: true})
	lvl, err := clog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = clog.InfoLevel
	}
	if verbose {
		lvl = clog.DebugLevel
	}
	L.SetLevel(lvl)
}

// Or returns l, or L when l is nil.
func Or(l *clog.Logger) *clog.Logger {
	if l != nil {
		return l
	}
	return L
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...any) {
	L.Debug(fmt.Sprintf(format, v...))
}
