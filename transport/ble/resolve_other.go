//go:build !linux

package ble

import "context"

// waitServicesResolved is a no-op where the platform stack resolves GATT
// services as part of connecting.
func waitServicesResolved(context.Context, string, string) error {
	return nil
}
