// Package audio enumerates output devices, decodes sound files and plays them through PulseAudio.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// DefaultDeviceID is the reserved id for the server's default sink.
const DefaultDeviceID = "default"

// ErrDeviceNotFound is returned when a device id matches no sink.
var ErrDeviceNotFound = errors.New("audio output device not found")

// Device describes one Pulse output sink.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Label is the human-facing device name.
func (d Device) Label() string {
	if strings.TrimSpace(d.Description) != "" {
		return d.Description
	}
	return d.ID
}

// ListDevices returns the Pulse output sinks with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return listDevices(client)
}

// ResolveDevice finds the sink an id refers to in a live device list.
func ResolveDevice(ctx context.Context, id string) (Device, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Device{}, err
	}
	return resolveFromList(devices, id)
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("soundboard"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

func listDevices(client *pulse.Client) ([]Device, error) {
	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			State:       sinkStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultID,
		})
	}
	return devices, nil
}

// resolveFromList matches "default", then an exact sink name, then a
// case-insensitive substring of the name or description.
func resolveFromList(devices []Device, id string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, errors.New("no audio output devices found")
	}

	term := strings.TrimSpace(id)
	if term == "" || strings.EqualFold(term, DefaultDeviceID) {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, fmt.Errorf("%w: default sink is unavailable", ErrDeviceNotFound)
	}

	for _, dev := range devices {
		if dev.ID == term {
			return dev, nil
		}
	}
	lowered := strings.ToLower(term)
	for _, dev := range devices {
		if deviceMatches(dev, lowered) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
}

// deviceMatches reports whether a lower-case search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

func sinkStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sinkAvailable maps Pulse sink port availability to a simple boolean.
func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	if len(sink.Ports) == 0 {
		return true
	}
	for _, port := range sink.Ports {
		if port.Name != sink.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
