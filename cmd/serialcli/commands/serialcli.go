// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

// ExitError makes the process exit with Code without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Options are the parsed flags of the root command.
type Options struct {
	Port string
	Exec []string
}

// env holds the collaborators of the root command so tests can swap them.
type env struct {
	resolve ResolveFunc
	spawner Spawner
	stdio   Stdio
	sleep   func(ctx context.Context, d time.Duration) error
}

func SerialCLICmd(info Info) *cobra.Command {
	return newRootCmd(info, env{
		spawner: ExecSpawner{},
		stdio:   StdStreams(),
	})
}

func newRootCmd(info Info, e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serialcli",
		Short: "Open a serial terminal on an attached device",
		Long: "Serialcli finds the serial port of the device attached over USB and opens\n" +
			"a raw terminal on it at 230400 baud.\n\n" +
			"With --exec the terminal is started in the background, sent a command, and\n" +
			"terminated again.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts := Options{}
			var err error
			if opts.Port, err = cmd.Flags().GetString("port"); err != nil {
				return err
			}
			if opts.Exec, err = cmd.Flags().GetStringArray("exec"); err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), verbose)

			cfg, err := GetConfig()
			if err != nil {
				return err
			}
			device, err := LoadDeviceConfig(cfg)
			if err != nil {
				return err
			}
			terminal, err := LoadTerminalConfig(cfg)
			if err != nil {
				return err
			}

			resolve := e.resolve
			if resolve == nil {
				resolve = NewPortResolver(device.Marker).Resolve
			}
			launcher := &Launcher{
				Spawner:     e.spawner,
				Stdio:       e.stdio,
				SettleDelay: terminal.SettleDelay,
				Log:         log,
				Sleep:       e.sleep,
			}

			code, err := run(ctx, log, resolve, launcher, opts)
			if err != nil {
				return err
			}
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayP("exec", "e", nil, "execute one or more commands and exit. Option could be given several times")
	cmd.Flags().StringP("port", "p", ConfiguredPort(), "port to use, or 'auto' to detect the attached device")
	cmd.Flags().BoolP("verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		MinitermCmd(),
		PortsCmd(),
		SetPortCmd(),
		VersionCmd(info),
	)
	return cmd
}

// run resolves the port and dispatches to interactive or scripted mode. It
// returns the exit status of the invocation.
func run(ctx context.Context, log *slog.Logger, resolve ResolveFunc, launcher *Launcher, opts Options) (int, error) {
	port := resolve(log, opts.Port)
	if port == "" {
		log.Error("Is the device connected over USB and not in DFU mode?")
		return 1, nil
	}

	if len(opts.Exec) == 0 {
		return launcher.RunInteractive(ctx, port)
	}
	if err := launcher.FeedCommands(ctx, port, opts.Exec); err != nil {
		return 1, err
	}
	return 0, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
