// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/toeirei/ufo/internal/logging"

func dbLogf(format string, v ...any) {
	logging.Debugf(format, v...)
}
