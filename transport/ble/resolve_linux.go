//go:build linux

package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService     = "org.bluez"
	bluezDevice      = "org.bluez.Device1"
	propertiesIface  = "org.freedesktop.DBus.Properties"
	propertiesMember = "PropertiesChanged"
)

var errSignalsClosed = errors.New("dbus signal channel closed")

// devicePath maps a MAC address to its BlueZ object path,
// e.g. "D4:E9:F4:E2:B5:8A" on hci0 becomes /org/bluez/hci0/dev_D4_E9_F4_E2_B5_8A
func devicePath(adapterID, mac string) dbus.ObjectPath {
	id := strings.ReplaceAll(strings.ToUpper(mac), ":", "_")
	return dbus.ObjectPath("/org/bluez/" + adapterID + "/dev_" + id)
}

// servicesResolved reports whether sig announces ServicesResolved=true on a device
func servicesResolved(sig *dbus.Signal) bool {
	if sig == nil || len(sig.Body) < 2 {
		return false
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != bluezDevice {
		return false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}
	v, ok := changed["ServicesResolved"]
	if !ok {
		return false
	}
	resolved, ok := v.Value().(bool)
	return ok && resolved
}

// propertyGetter is the part of a dbus.BusObject resolvedProperty reads
type propertyGetter interface {
	GetProperty(p string) (dbus.Variant, error)
}

// resolvedProperty reads ServicesResolved from the device object
func resolvedProperty(obj propertyGetter) bool {
	v, err := obj.GetProperty(bluezDevice + ".ServicesResolved")
	if err != nil {
		return false
	}
	resolved, ok := v.Value().(bool)
	return ok && resolved
}

// waitServicesResolved blocks until BlueZ finishes GATT discovery for the
// device. Discovering services before that yields an empty list.
func waitServicesResolved(ctx context.Context, adapterID, mac string) error {
	path := devicePath(adapterID, mac)

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("dbus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// subscribe before reading the property so a change in between is not lost
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember(propertiesMember),
		dbus.WithMatchObjectPath(path),
	); err != nil {
		return fmt.Errorf("dbus match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	// reconnects usually find the profile already resolved
	if resolvedProperty(conn.Object(bluezService, path)) {
		return nil
	}

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return errSignalsClosed
			}
			if servicesResolved(sig) {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for ServicesResolved on %s: %w", path, ctx.Err())
		}
	}
}
