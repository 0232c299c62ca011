// Package netsim provides an in-memory network driver.
//
// Network stands in for the radio: it keeps stored credentials, tracks the
// link state and delivers connect/disconnect events to subscribed handlers.
// Tests and `wifiprov run --mock` use it to drive the coordinator and the
// portal without hardware.
package netsim

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/linkevents"
	"github.com/muurk/wifiprov/internal/logging"
)

// ErrNoCredentials is returned by Connect when nothing is stored
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials are the stored station credentials
type Credentials struct {
	SSID     string
	Password string
}

// Network is a simulated network driver
type Network struct {
	*linkevents.Registry

	mu          sync.Mutex
	credentials *Credentials
	connected   bool
	accessPoint string

	// JoinErr, when set, makes Join fail without storing credentials.
	JoinErr error
	// ConnectErr, when set, makes Connect fail even with credentials.
	ConnectErr error

	forgetCalls     int
	disconnectCalls int
	connectCalls    int
}

// New creates a disconnected network with no stored credentials
func New() *Network {
	return &Network{
		Registry: linkevents.NewRegistry(),
	}
}

// HandlerCount returns the number of handlers registered for kind
func (n *Network) HandlerCount(kind coordinator.EventKind) int {
	return n.Count(kind)
}

// ForgetCredentials erases stored credentials
func (n *Network) ForgetCredentials() error {
	n.mu.Lock()
	n.credentials = nil
	n.forgetCalls++
	n.mu.Unlock()
	return nil
}

// Disconnect drops the link, emitting a disconnect event if it was up
func (n *Network) Disconnect() error {
	n.mu.Lock()
	n.disconnectCalls++
	wasUp := n.connected
	n.connected = false
	n.mu.Unlock()

	if wasUp {
		n.Emit(coordinator.EventDisconnected)
	}
	return nil
}

// Connect associates using stored credentials
func (n *Network) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	n.connectCalls++
	if n.credentials == nil {
		n.mu.Unlock()
		return ErrNoCredentials
	}
	if n.ConnectErr != nil {
		err := n.ConnectErr
		n.mu.Unlock()
		return err
	}
	wasUp := n.connected
	n.connected = true
	n.mu.Unlock()

	if !wasUp {
		n.Emit(coordinator.EventConnected)
	}
	return nil
}

// Join stores credentials and connects with them
func (n *Network) Join(ctx context.Context, ssid, password string) error {
	if n.JoinErr != nil {
		return n.JoinErr
	}
	n.SetCredentials(ssid, password)
	return n.Connect(ctx)
}

// SetCredentials stores credentials without connecting
func (n *Network) SetCredentials(ssid, password string) {
	n.mu.Lock()
	n.credentials = &Credentials{SSID: ssid, Password: password}
	n.mu.Unlock()
}

// Credentials returns the stored credentials, if any
func (n *Network) Credentials() (Credentials, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.credentials == nil {
		return Credentials{}, false
	}
	return *n.credentials, true
}

// Connected reports whether the simulated link is up
func (n *Network) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// SimulateLinkLoss drops the link as if the access point went away
func (n *Network) SimulateLinkLoss() {
	n.mu.Lock()
	n.connected = false
	n.mu.Unlock()
	n.Emit(coordinator.EventDisconnected)
}

// SimulateLinkUp raises the link without going through Connect
func (n *Network) SimulateLinkUp() {
	n.mu.Lock()
	n.connected = true
	n.mu.Unlock()
	n.Emit(coordinator.EventConnected)
}

// Calls returns how often ForgetCredentials, Disconnect and Connect ran
func (n *Network) Calls() (forget, disconnect, connect int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.forgetCalls, n.disconnectCalls, n.connectCalls
}

// StartAccessPoint raises the simulated provisioning access point. The
// returned stop function takes it down again.
func (n *Network) StartAccessPoint(ctx context.Context, name string) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.accessPoint = name
	n.mu.Unlock()
	logging.Info("Simulated access point up", zap.String("name", name))

	return func() error {
		n.mu.Lock()
		n.accessPoint = ""
		n.mu.Unlock()
		logging.Debug("Simulated access point down", zap.String("name", name))
		return nil
	}, nil
}

// AccessPoint returns the name of the running access point, or ""
func (n *Network) AccessPoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accessPoint
}
