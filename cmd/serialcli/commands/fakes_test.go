// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/toitlang/serialcli/cmd/serialcli/directory"
)

type fakeChild struct {
	writeErr error
	writes   []string
	events   []string
}

func (c *fakeChild) Write(p []byte) (int, error) {
	c.events = append(c.events, "write")
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func (c *fakeChild) Terminate() error {
	c.events = append(c.events, "terminate")
	return nil
}

func (c *fakeChild) Wait() error {
	c.events = append(c.events, "wait")
	return nil
}

type fakeSpawner struct {
	code   int
	runErr error
	runs   [][]string
	stdios []Stdio

	child    *fakeChild
	startErr error
	starts   [][]string
}

func (s *fakeSpawner) Run(_ context.Context, argv []string, stdio Stdio) (int, error) {
	s.runs = append(s.runs, argv)
	s.stdios = append(s.stdios, stdio)
	return s.code, s.runErr
}

func (s *fakeSpawner) Start(_ context.Context, argv []string) (Child, error) {
	s.starts = append(s.starts, argv)
	if s.startErr != nil {
		return nil, s.startErr
	}
	if s.child == nil {
		s.child = &fakeChild{}
	}
	return s.child, nil
}

func (s *fakeSpawner) spawned() int {
	return len(s.runs) + len(s.starts)
}

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return newLogger(&buf, true), &buf
}

// useTempConfig points the user config at a fresh file in a temp directory.
func useTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(directory.UserConfigPathEnv, path)
	return path
}
