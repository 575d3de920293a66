// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// quitKey is Ctrl+].
const quitKey = 0x1d

func MinitermCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "miniterm PORT BAUD",
		Short:        "Minimal serial terminal",
		Args:         cobra.ExactArgs(2),
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port := args[0]
			baud, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid baud rate '%s'", args[1])
			}

			raw, err := cmd.Flags().GetBool("raw")
			if err != nil {
				return err
			}

			dev, err := serialOpen(port, &serial.Mode{
				BaudRate: baud,
				DataBits: 8,
				Parity:   serial.NoParity,
				StopBits: serial.OneStopBit,
			})
			if err != nil {
				return err
			}
			defer dev.Close()

			status := color.New(color.FgCyan)
			status.Fprintf(os.Stderr, "--- Miniterm on %s  %d,8,N,1 ---\r\n", port, baud)
			status.Fprintf(os.Stderr, "--- Quit: Ctrl+] ---\r\n")

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				oldState, err := term.MakeRaw(fd)
				if err != nil {
					return err
				}
				defer term.Restore(fd, oldState)
			}

			s := &session{
				dev: dev,
				in:  os.Stdin,
				out: os.Stdout,
				raw: raw,
			}
			err = s.run(cmd.Context())
			status.Fprintf(os.Stderr, "\r\n--- exit ---\r\n")
			return err
		},
	}

	cmd.Flags().Bool("raw", false, "do not apply any newline translation")
	return cmd
}

func serialOpen(port string, mode *serial.Mode) (*serialPort, error) {
	dev, err := serial.Open(port, mode)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("the port '%s' was not found", port)
	}
	if err != nil {
		return nil, err
	}

	return &serialPort{dev}, err
}

type serialPort struct {
	serial.Port
}

func (s serialPort) Read(buf []byte) (n int, err error) {
	n, err = s.Port.Read(buf)
	if err == nil && n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return n, err
}

// session pumps bytes between a local terminal and a device.
type session struct {
	dev io.ReadWriter
	in  io.Reader
	out io.Writer
	raw bool
}

var errQuit = errors.New("quit")

// run returns nil when the user quits or the input ends.
func (s *session) run(ctx context.Context) error {
	errs := make(chan error, 2)
	go func() { errs <- s.reader() }()
	go func() { errs <- s.writer() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

// reader copies device output to the terminal.
func (s *session) reader() error {
	buf := make([]byte, 1024)
	for {
		n, err := s.dev.Read(buf)
		if n > 0 {
			if _, werr := s.out.Write(s.rx(buf[:n])); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

// writer copies terminal input to the device until the quit key.
func (s *session) writer() error {
	buf := make([]byte, 256)
	for {
		n, err := s.in.Read(buf)
		if n > 0 {
			data := buf[:n]
			quit := false
			if i := bytes.IndexByte(data, quitKey); i >= 0 {
				data = data[:i]
				quit = true
			}
			if len(data) > 0 {
				if _, werr := s.dev.Write(s.tx(data)); werr != nil {
					return werr
				}
			}
			if quit {
				return errQuit
			}
		}
		if err != nil {
			return err
		}
	}
}

func (s *session) tx(data []byte) []byte {
	if s.raw {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
}

func (s *session) rx(data []byte) []byte {
	if s.raw {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\r"), nil)
}
