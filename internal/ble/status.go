package ble

// Status is the connection lifecycle state surfaced to the display layer.
type Status int

const (
	StatusDisconnected Status = iota
	StatusScanning
	StatusConnecting
	StatusConnected
	StatusReady
	StatusReconnecting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusScanning:
		return "scanning"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReady:
		return "ready"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "disconnected"
	}
}

// Update pairs a status with a human-readable message.
type Update struct {
	Status  Status
	Message string
}

// StatusFunc receives status updates. Callbacks must not block; they run on
// the connection-management goroutines.
type StatusFunc func(Update)
