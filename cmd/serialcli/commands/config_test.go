// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ConfigDefaults(t *testing.T) {
	useTempConfig(t)

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, AutoPort, ConfiguredPort())

	device, err := LoadDeviceConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "flip_", device.Marker)

	terminal, err := LoadTerminalConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Second, terminal.SettleDelay)
}

func Test_ConfigFromFile(t *testing.T) {
	path := useTempConfig(t)
	content := "port: COM7\n" +
		"device:\n  marker: esp_\n" +
		"terminal:\n  settle-delay: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, "COM7", ConfiguredPort())

	device, err := LoadDeviceConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "esp_", device.Marker)

	terminal, err := LoadTerminalConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, terminal.SettleDelay)
}
