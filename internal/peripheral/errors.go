package peripheral

import (
	"errors"
	"fmt"
	"strings"
)

// Stack errors
var (
	ErrBluetoothOff        = errors.New("bluetooth is turned off")
	ErrUnsupportedPlatform = errors.New("BLE peripheral role is not supported on this platform")
	ErrPermission          = errors.New("insufficient permissions for the HCI device")
)

// NormalizeError maps known go-ble error strings to the sentinels above.
// The original error stays wrapped so its text is not lost.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case errors.Is(err, ErrBluetoothOff), errors.Is(err, ErrPermission), errors.Is(err, ErrUnsupportedPlatform):
		return err
	case containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "is Bluetooth turned on"),
		containsIgnoreCase(msg, "powered off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
