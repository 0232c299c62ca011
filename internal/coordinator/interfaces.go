package coordinator

import "context"

// EventKind identifies a link-state notification from the network driver
type EventKind int

const (
	// EventConnected fires when the station associates with a network
	EventConnected EventKind = iota
	// EventDisconnected fires when the station loses its network
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Token identifies a handler registration held by a network driver.
// The driver never owns the handler; the Coordinator does.
type Token string

// NetworkDriver is the radio side of the device.
type NetworkDriver interface {
	// Subscribe registers handler for kind and returns its token.
	// Handlers may be invoked from any goroutine but never concurrently
	// with each other.
	Subscribe(kind EventKind, handler func()) (Token, error)

	// Unsubscribe removes a registration. Unknown tokens are ignored.
	Unsubscribe(token Token)

	// ForgetCredentials erases stored Wi-Fi credentials.
	ForgetCredentials() error

	// Disconnect drops the current association.
	Disconnect() error
}

// Provisioner is the captive-portal subsystem.
type Provisioner interface {
	// AddParameter adds a field to the portal form, prefilled with p.Value.
	AddParameter(p Parameter) error

	// SetSaveCallback installs fn to run after the user submits the portal.
	SetSaveCallback(fn func())

	// AutoConnect connects with stored credentials or runs the portal on an
	// access point named apName. It blocks until connected or the portal
	// session ends.
	AutoConnect(ctx context.Context, apName string) error

	// ParameterValue returns the value the portal currently holds for id.
	ParameterValue(id string) (string, bool)
}
