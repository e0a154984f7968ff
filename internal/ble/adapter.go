// Package ble maintains the link to the Kraken housing: scanning, connecting,
// subscribing to its button characteristics, and reconnecting when the link
// drops. The rest of the bridge sees only a channel of raw button codes and a
// stream of status updates.
package ble

import "context"

// Kraken housing GATT layout. The housing notifies every button event on both
// the current and the legacy characteristic; subscribers must deduplicate.
const (
	ServiceUUID          = "00001523-1212-efde-1523-785feabcd123"
	ButtonCharUUID       = "00001524-1212-efde-1523-785feabcd123"
	LegacyButtonCharUUID = "00001526-1212-efde-1523-785feabcd123"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers peripherals advertising the given service UUID until
	// ctx is cancelled or the scan window elapses.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device at the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
