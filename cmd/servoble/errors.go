package main

import (
	"errors"

	"github.com/srg/servoble/internal/peripheral"
	"github.com/srg/servoble/pkg/config"
)

// FormatUserError turns known failures into a short actionable message
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, peripheral.ErrBluetoothOff):
		return "Bluetooth is turned off. Enable it and try again."
	case errors.Is(err, peripheral.ErrPermission):
		return "insufficient permissions for the Bluetooth adapter. Run as root or grant CAP_NET_ADMIN and CAP_NET_RAW."
	case errors.Is(err, peripheral.ErrUnsupportedPlatform):
		return "the BLE peripheral role is not supported on this platform (Linux and macOS only)."
	case errors.Is(err, config.ErrInvalidConfig):
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return "invalid configuration: " + verr.Error()
		}
		return err.Error()
	default:
		return err.Error()
	}
}
