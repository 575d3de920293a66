// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
	"gopkg.in/yaml.v2"
)

type Device struct {
	Port         string `mapstructure:"port" yaml:"port" json:"port"`
	VID          string `mapstructure:"vid" yaml:"vid" json:"vid"`
	PID          string `mapstructure:"pid" yaml:"pid" json:"pid"`
	SerialNumber string `mapstructure:"serial" yaml:"serial" json:"serial"`
	Product      string `mapstructure:"product" yaml:"product,omitempty" json:"product,omitempty"`
}

func (d Device) Short() string {
	return fmt.Sprintf("%s\t%s:%s\t%s", d.Port, d.VID, d.PID, d.SerialNumber)
}

type Devices struct {
	Devices []Device `mapstructure:"devices" yaml:"devices" json:"devices"`
}

func (d Devices) Elements() []Short {
	var res []Short
	for _, e := range d.Devices {
		res = append(res, e)
	}
	return res
}

func newDevices(details []*enumerator.PortDetails) Devices {
	res := Devices{Devices: []Device{}}
	for _, p := range details {
		res.Devices = append(res.Devices, Device{
			Port:         p.Name,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return res
}

func PortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ports",
		Short:        "List attached devices",
		Long:         "List the USB serial ports of attached devices.\n\nWith --all every USB serial port is listed.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}

			cfg, err := GetConfig()
			if err != nil {
				return err
			}
			device, err := LoadDeviceConfig(cfg)
			if err != nil {
				return err
			}

			resolver := NewPortResolver(device.Marker)
			var details []*enumerator.PortDetails
			if all {
				details, err = usbPorts(resolver.Enumerate)
			} else {
				details, err = resolver.Devices()
			}
			if err != nil {
				return err
			}
			return enc.Encode(newDevices(details))
		},
	}

	cmd.Flags().Bool("all", false, "list every USB serial port")
	cmd.Flags().StringP("output", "o", "short", "set output format to json, yaml or short")
	return cmd
}

func usbPorts(enumerate func() ([]*enumerator.PortDetails, error)) ([]*enumerator.PortDetails, error) {
	ports, err := enumerate()
	if err != nil {
		return nil, err
	}
	var res []*enumerator.PortDetails
	for _, p := range ports {
		if p.IsUSB {
			res = append(res, p)
		}
	}
	return res, nil
}

type encoder interface {
	Encode(interface{}) error
}

func parseOutputFlag(cmd *cobra.Command) (encoder, error) {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	return newEncoder(output, cmd.OutOrStdout())
}

func newEncoder(output string, w io.Writer) (encoder, error) {
	switch strings.ToLower(output) {
	case "json":
		return json.NewEncoder(w), nil
	case "yaml":
		return yaml.NewEncoder(w), nil
	case "short":
		return newShortEncoder(w), nil
	default:
		return nil, fmt.Errorf("--output flag '%s' was not recognized. Must be either json, yaml or short", output)
	}
}

type shortEncoder struct {
	w io.Writer
}

func newShortEncoder(w io.Writer) *shortEncoder {
	return &shortEncoder{
		w: w,
	}
}

type Elements interface {
	Elements() []Short
}

type Short interface {
	Short() string
}

func (s *shortEncoder) Encode(v interface{}) error {
	es, ok := v.(Elements)
	if !ok {
		return fmt.Errorf("value type %T was not compatible with the Elements interface", v)
	}
	for _, e := range es.Elements() {
		fmt.Fprintln(s.w, e.Short())
	}
	return nil
}
