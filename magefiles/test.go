//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs every test. Suites that need live servers skip themselves.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs every test with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes coverage.out and prints per-function coverage.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func=coverage.out")
}

// Integration starts the container stack and runs the tier suites against
// it.
func (Test) Integration() error {
	mg.Deps(Stack.Up)
	env := map[string]string{
		"LANDRECORDS_TEST_POSTGRES_DSN": postgresDSN(),
	}
	return sh.RunWithV(env, binGo, "test", "-count=1", "./internal/sqltier/...", "./internal/orchestrator/...")
}
