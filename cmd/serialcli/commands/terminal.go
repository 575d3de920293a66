// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"strconv"

	"github.com/toitlang/serialcli/cmd/serialcli/directory"
)

// BaudRate is the fixed rate the device console runs at.
const BaudRate = 230400

// TerminalCommand returns the argument vector that runs the bundled miniterm
// of this binary in raw mode against port.
func TerminalCommand(port string) []string {
	return []string{
		directory.ExecutableName(),
		"miniterm",
		"--raw",
		"--",
		port,
		strconv.Itoa(BaudRate),
	}
}
