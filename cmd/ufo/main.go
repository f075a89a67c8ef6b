// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Command ufo manages the users and proxy servers of an UfO installation
// and runs the daemon that distributes keys and reconciles users with the
// directory.
package main

import (
	"os"
)

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra has already printed the error.
		os.Exit(1)
	}
}
