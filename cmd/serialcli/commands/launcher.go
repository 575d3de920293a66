// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/toitlang/serialcli/cmd/serialcli/directory"
)

// ErrSubprocessFault wraps every failure to start, write to, or reap the
// terminal child process.
var ErrSubprocessFault = errors.New("terminal subprocess fault")

// helpCommand is the only line sent in scripted mode.
const helpCommand = "help\n"

type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func StdStreams() Stdio {
	return Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Child is a started terminal process with a writable input stream.
type Child interface {
	io.Writer
	Terminate() error
	Wait() error
}

type Spawner interface {
	// Run runs argv to completion and returns its exit status.
	Run(ctx context.Context, argv []string, stdio Stdio) (int, error)
	// Start starts argv with a piped stdin and inherited output.
	Start(ctx context.Context, argv []string) (Child, error)
}

type Launcher struct {
	Spawner     Spawner
	Stdio       Stdio
	SettleDelay time.Duration
	Log         *slog.Logger

	// Sleep defaults to a context aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RunInteractive hands the caller's terminal to miniterm on port and blocks
// until the user quits it.
func (l *Launcher) RunInteractive(ctx context.Context, port string) (int, error) {
	argv := TerminalCommand(port)
	l.Log.Debug("starting interactive terminal", "argv", argv)
	code, err := l.Spawner.Run(ctx, argv, l.Stdio)
	if err != nil {
		return code, fmt.Errorf("%w: %w", ErrSubprocessFault, err)
	}
	return code, nil
}

// FeedCommands starts miniterm on port, sends the help command once and
// terminates it again. The child is terminated and reaped on every path.
//
// The given commands are accepted but not transmitted.
func (l *Launcher) FeedCommands(ctx context.Context, port string, commands []string) (err error) {
	argv := TerminalCommand(port)
	l.Log.Debug("starting scripted terminal", "argv", argv)
	child, err := l.Spawner.Start(ctx, argv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubprocessFault, err)
	}
	defer func() {
		if terr := child.Terminate(); terr != nil {
			l.Log.Debug("failed to terminate terminal", "error", terr)
		}
		if werr := child.Wait(); werr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrSubprocessFault, werr)
		}
	}()

	for _, c := range commands {
		l.Log.Debug("scripted command not sent", "command", c)
	}

	if err := l.sleep(ctx); err != nil {
		return err
	}
	if _, err := io.WriteString(child, helpCommand); err != nil {
		return fmt.Errorf("%w: %w", ErrSubprocessFault, err)
	}
	return l.sleep(ctx)
}

func (l *Launcher) sleep(ctx context.Context) error {
	if l.Sleep != nil {
		return l.Sleep(ctx, l.SettleDelay)
	}
	return sleepContext(ctx, l.SettleDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExecSpawner runs terminals as real child processes.
type ExecSpawner struct{}

func (ExecSpawner) command(ctx context.Context, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if argv[0] == directory.ExecutableName() {
		// Re-invoke ourselves even when we are not on the PATH.
		if self, err := os.Executable(); err == nil {
			cmd.Path = self
			cmd.Err = nil
		}
	}
	cmd.Cancel = func() error {
		return terminate(cmd.Process)
	}
	return cmd
}

func (s ExecSpawner) Run(ctx context.Context, argv []string, stdio Stdio) (int, error) {
	cmd := s.command(ctx, argv)
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}

func (s ExecSpawner) Start(ctx context.Context, argv []string) (Child, error) {
	cmd := s.command(ctx, argv)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execChild{cmd: cmd, stdin: stdin}, nil
}

type execChild struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	terminated bool
}

func (c *execChild) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

func (c *execChild) Terminate() error {
	c.terminated = true
	c.stdin.Close()
	err := terminate(c.cmd.Process)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Wait reaps the child. Once Terminate has run, any exit status is accepted,
// including a non-zero exit the child made on its own before the signal; such
// a failure only surfaces through Write.
func (c *execChild) Wait() error {
	err := c.cmd.Wait()
	var exitErr *exec.ExitError
	if c.terminated && errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func terminate(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}
