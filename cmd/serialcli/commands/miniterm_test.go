// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice blocks reads until closed and records writes.
type fakeDevice struct {
	mu      sync.Mutex
	written bytes.Buffer
	done    chan struct{}
}

func newFakeDevice(t *testing.T) *fakeDevice {
	d := &fakeDevice{done: make(chan struct{})}
	t.Cleanup(func() { close(d.done) })
	return d
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	<-d.done
	return 0, io.EOF
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.Write(p)
}

func (d *fakeDevice) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.String()
}

func Test_sessionWriter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		raw  bool
		sent string
	}{
		{name: "raw", in: "help\n", raw: true, sent: "help\n"},
		{name: "translated", in: "help\nuptime\n", sent: "help\r\nuptime\r\n"},
		{name: "quit key", in: "ab\x1dcd", raw: true, sent: "ab"},
		{name: "quit key only", in: "\x1dhelp\n", raw: true, sent: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := newFakeDevice(t)
			s := &session{
				dev: dev,
				in:  strings.NewReader(test.in),
				out: io.Discard,
				raw: test.raw,
			}
			require.NoError(t, s.run(context.Background()))
			assert.Equal(t, test.sent, dev.String())
		})
	}
}

type scriptedDevice struct {
	reads []string
	err   error
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	if len(d.reads) == 0 {
		return 0, d.err
	}
	n := copy(p, d.reads[0])
	d.reads = d.reads[1:]
	return n, nil
}

func (d *scriptedDevice) Write(p []byte) (int, error) {
	return len(p), nil
}

func Test_sessionReader(t *testing.T) {
	readErr := errors.New("device disconnected")
	for _, raw := range []bool{false, true} {
		var out bytes.Buffer
		s := &session{
			dev: &scriptedDevice{reads: []string{"Welcome\r\n", ">: "}, err: readErr},
			out: &out,
			raw: raw,
		}
		assert.ErrorIs(t, s.reader(), readErr)
		if raw {
			assert.Equal(t, "Welcome\r\n>: ", out.String())
		} else {
			assert.Equal(t, "Welcome\n>: ", out.String())
		}
	}
}

func Test_sessionStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := &session{
		dev: newFakeDevice(t),
		in:  pr,
		out: io.Discard,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.run(ctx))
}

func Test_MinitermCmdRejectsBadBaud(t *testing.T) {
	cmd := MinitermCmd()
	cmd.SetArgs([]string{"--raw", "--", "/dev/ttyACM0", "fast"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid baud rate")
}
