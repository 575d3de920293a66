// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"time"

	"github.com/spf13/viper"
	"github.com/toitlang/serialcli/cmd/serialcli/directory"
)

const (
	PortCfgKey     = "port"
	DeviceCfgKey   = "device"
	TerminalCfgKey = "terminal"

	// AutoPort selects the single attached device that carries the device marker.
	AutoPort = "auto"

	defaultDeviceMarker = "flip_"
	defaultSettleDelay  = time.Second
)

type DeviceConfig struct {
	Marker string `mapstructure:"marker" yaml:"marker" json:"marker"`
}

type TerminalConfig struct {
	SettleDelay time.Duration `mapstructure:"settle-delay" yaml:"settle-delay" json:"settle-delay"`
}

func GetConfig() (*viper.Viper, error) {
	cfg, err := directory.GetUserConfig()
	if err != nil {
		return nil, err
	}
	cfg.SetDefault(PortCfgKey, AutoPort)
	cfg.SetDefault(DeviceCfgKey+".marker", defaultDeviceMarker)
	cfg.SetDefault(TerminalCfgKey+".settle-delay", defaultSettleDelay)
	return cfg, nil
}

func ConfiguredPort() string {
	cfg, err := GetConfig()
	if err != nil {
		return AutoPort
	}
	return cfg.GetString(PortCfgKey)
}

func LoadDeviceConfig(cfg *viper.Viper) (DeviceConfig, error) {
	var res DeviceConfig
	if err := cfg.UnmarshalKey(DeviceCfgKey, &res); err != nil {
		return res, err
	}
	if res.Marker == "" {
		res.Marker = defaultDeviceMarker
	}
	return res, nil
}

func LoadTerminalConfig(cfg *viper.Viper) (TerminalConfig, error) {
	var res TerminalConfig
	if err := cfg.UnmarshalKey(TerminalCfgKey, &res); err != nil {
		return res, err
	}
	if res.SettleDelay <= 0 {
		res.SettleDelay = defaultSettleDelay
	}
	return res, nil
}
