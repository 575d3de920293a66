// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/toitlang/serialcli/cmd/serialcli/directory"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ResolveFunc turns a selection mode into a port name. It returns the empty
// string when no port could be found; the reason has already been logged.
type ResolveFunc func(log *slog.Logger, mode string) string

// PortResolver finds the attached device among the USB serial ports.
type PortResolver struct {
	// Marker is matched against the serial number and product string.
	Marker    string
	Enumerate func() ([]*enumerator.PortDetails, error)
}

func NewPortResolver(marker string) *PortResolver {
	return &PortResolver{
		Marker:    marker,
		Enumerate: enumerator.GetDetailedPortsList,
	}
}

func (r *PortResolver) Resolve(log *slog.Logger, mode string) string {
	if mode != AutoPort {
		return mode
	}

	devices, err := r.Devices()
	if err != nil {
		log.Error("failed to enumerate serial ports", "error", err)
		return ""
	}

	switch len(devices) {
	case 1:
		log.Info("using device", "serial", devices[0].SerialNumber, "port", devices[0].Name)
		return devices[0].Name
	case 0:
		log.Error("failed to find connected device", "marker", r.Marker)
	default:
		names := make([]string, 0, len(devices))
		for _, d := range devices {
			names = append(names, d.Name)
		}
		log.Error("more than one device is attached", "ports", names)
	}
	log.Error("failed to guess which port to use")
	return ""
}

// Devices returns the USB serial ports carrying the marker.
func (r *PortResolver) Devices() ([]*enumerator.PortDetails, error) {
	ports, err := r.Enumerate()
	if err != nil {
		return nil, err
	}
	var res []*enumerator.PortDetails
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.Contains(p.SerialNumber, r.Marker) || strings.Contains(p.Product, r.Marker) {
			res = append(res, p)
		}
	}
	return res, nil
}

func SetPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set-port",
		Short:        "Select the serial port you want to use by default",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			cfg, err := GetConfig()
			if err != nil {
				return err
			}

			port, err := pickPort(all)
			if err != nil {
				return err
			}

			cfg.Set(PortCfgKey, port)
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("Default port set to '%s'\n", port)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	return cmd
}

func pickPort(all bool) (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	if !all {
		ports = filterPorts(ports)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports detected. Is the device connected over USB?")
	}

	prompt := promptui.Select{
		Label:     "Choose what serial port you want to use",
		Items:     ports,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}

	return ports[i], nil
}

func filterPorts(ports []string) []string {
	switch runtime.GOOS {
	case "darwin":
		return darwinFilterPaths(ports)
	case "linux":
		return linuxFilterPaths(ports)
	default:
		return ports
	}
}

func darwinFilterPaths(paths []string) []string {
	existing := map[string]struct{}{}
	for _, p := range paths {
		existing[p] = struct{}{}
	}
	var res []string
	for _, path := range paths {
		if strings.HasPrefix(path, "/dev/cu") && !strings.Contains(path, "Bluetooth") {
			res = append(res, path)
		} else if strings.HasPrefix(path, "/dev/tty") && !strings.Contains(path, "Bluetooth") {
			candidate := "/dev/cu" + strings.TrimPrefix(path, "/dev/tty")
			if _, exists := existing[candidate]; !exists {
				res = append(res, path)
			}
		}
	}
	return res
}

func linuxFilterPaths(paths []string) []string {
	res := []string(nil)
	for _, path := range paths {
		if strings.Contains(path, "tty") {
			if strings.Contains(path, "USB") || strings.Contains(path, "ACM") {
				res = append(res, path)
			}
		}
	}
	return res
}
