//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for landrecords using Mage.
//
// Usage:
//
//	mage build            Compile the landrecords binary to bin/
//	mage install          Install landrecords to GOPATH/bin
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
//	mage test:all         Run every test
//	mage test:race        Run every test with the race detector
//	mage test:cover       Write coverage.out and print the summary
//	mage test:integration Run the tier suites against the container stack
//	mage stack:up         Start PostgreSQL and Redis containers
//	mage stack:down       Remove them
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "landrecords"
	binaryDir  = "bin"
	cmdDir     = "./cmd/landrecords"
)

// Build compiles the landrecords binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	for _, p := range []string{binaryDir, "coverage.out"} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}
