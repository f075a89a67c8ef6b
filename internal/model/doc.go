// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the entities shared by the key distribution and
// directory reconciliation code: User, ProxyServer and the singleton Config.
package model // import "github.com/toeirei/ufo/internal/model"
