//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Stack groups the targets that run the remote tiers in containers.
type Stack mg.Namespace

const (
	postgresContainer = "landrecords-postgres"
	postgresImage     = "postgres:16-alpine"
	postgresPort      = "55432"
	postgresPassword  = "landrecords"

	redisContainer = "landrecords-redis"
	redisImage     = "redis:7-alpine"
	redisPort      = "56379"
)

func postgresDSN() string {
	return fmt.Sprintf("postgres://postgres:%s@127.0.0.1:%s/postgres?sslmode=disable", postgresPassword, postgresPort)
}

// containerRuntime returns "podman" or "docker" if a working runtime is
// available, or "" if neither is usable.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

func running(rt, name string) bool {
	out, err := sh.Output(rt, "inspect", "-f", "{{.State.Running}}", name)
	return err == nil && out == "true"
}

// Up starts PostgreSQL and Redis and waits until PostgreSQL accepts
// connections. Running containers are reused.
func (Stack) Up() error {
	rt := containerRuntime()
	if rt == "" {
		return errors.New("no container runtime found (tried podman, docker)")
	}
	if !running(rt, postgresContainer) {
		if err := sh.RunV(rt, "run", "-d", "--rm", "--name", postgresContainer,
			"-e", "POSTGRES_PASSWORD="+postgresPassword,
			"-p", postgresPort+":5432", postgresImage); err != nil {
			return err
		}
	}
	if !running(rt, redisContainer) {
		if err := sh.RunV(rt, "run", "-d", "--rm", "--name", redisContainer,
			"-p", redisPort+":6379", redisImage); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(30 * time.Second)
	for exec.Command(rt, "exec", postgresContainer, "pg_isready", "-U", "postgres").Run() != nil {
		if time.Now().After(deadline) {
			return errors.New("postgres did not become ready")
		}
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Printf("LANDRECORDS_SQL_DSN=%s\n", postgresDSN())
	fmt.Printf("LANDRECORDS_DOCUMENT_ADDR=127.0.0.1:%s\n", redisPort)
	fmt.Printf("LANDRECORDS_TEST_POSTGRES_DSN=%s\n", postgresDSN())
	return nil
}

// Down removes the stack containers. Missing containers are ignored.
func (Stack) Down() error {
	rt := containerRuntime()
	if rt == "" {
		return errors.New("no container runtime found (tried podman, docker)")
	}
	for _, name := range []string{postgresContainer, redisContainer} {
		_ = exec.Command(rt, "rm", "-f", name).Run()
	}
	return nil
}
