package netsim

import (
	"context"
	"errors"
	"testing"

	"github.com/muurk/wifiprov/internal/coordinator"
)

func TestNetwork_SubscribeAndEmit(t *testing.T) {
	n := New()

	var up, down int
	if _, err := n.Subscribe(coordinator.EventConnected, func() { up++ }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	tok, err := n.Subscribe(coordinator.EventDisconnected, func() { down++ })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	n.SimulateLinkUp()
	n.SimulateLinkLoss()
	if up != 1 || down != 1 {
		t.Errorf("up=%d down=%d, want 1 and 1", up, down)
	}

	n.Unsubscribe(tok)
	n.SimulateLinkLoss()
	if down != 1 {
		t.Errorf("handler ran after Unsubscribe, down=%d", down)
	}
	if n.HandlerCount(coordinator.EventDisconnected) != 0 {
		t.Error("HandlerCount should be 0 after Unsubscribe")
	}

	// Unknown tokens are ignored
	n.Unsubscribe("not-a-token")
}

func TestNetwork_SubscribeNilHandler(t *testing.T) {
	if _, err := New().Subscribe(coordinator.EventConnected, nil); err == nil {
		t.Error("Subscribe(nil) should fail")
	}
}

func TestNetwork_TokensAreUnique(t *testing.T) {
	n := New()
	a, _ := n.Subscribe(coordinator.EventConnected, func() {})
	b, _ := n.Subscribe(coordinator.EventConnected, func() {})
	if a == b {
		t.Errorf("tokens should differ, both %q", a)
	}
}

func TestNetwork_ConnectNeedsCredentials(t *testing.T) {
	n := New()
	ctx := context.Background()

	if err := n.Connect(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Connect() error = %v, want ErrNoCredentials", err)
	}

	var up int
	_, _ = n.Subscribe(coordinator.EventConnected, func() { up++ })

	if err := n.Join(ctx, "home", "secret"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !n.Connected() || up != 1 {
		t.Errorf("Connected()=%v up=%d, want true and 1", n.Connected(), up)
	}

	// Already connected: no second event
	if err := n.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if up != 1 {
		t.Errorf("up = %d after redundant Connect, want 1", up)
	}

	creds, ok := n.Credentials()
	if !ok || creds.SSID != "home" || creds.Password != "secret" {
		t.Errorf("Credentials() = %+v, %v", creds, ok)
	}
}

func TestNetwork_ForgetAndDisconnect(t *testing.T) {
	n := New()
	n.SetCredentials("home", "secret")
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var down int
	_, _ = n.Subscribe(coordinator.EventDisconnected, func() { down++ })

	if err := n.ForgetCredentials(); err != nil {
		t.Fatalf("ForgetCredentials() error = %v", err)
	}
	if _, ok := n.Credentials(); ok {
		t.Error("credentials should be gone")
	}

	if err := n.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := n.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
	if down != 1 {
		t.Errorf("down = %d, want 1 (only the first Disconnect drops a link)", down)
	}

	forget, disconnect, connect := n.Calls()
	if forget != 1 || disconnect != 2 || connect != 1 {
		t.Errorf("Calls() = %d, %d, %d", forget, disconnect, connect)
	}
}

func TestNetwork_InjectedFailures(t *testing.T) {
	n := New()
	n.JoinErr = errors.New("auth rejected")
	if err := n.Join(context.Background(), "home", "wrong"); err == nil {
		t.Error("Join() should fail with JoinErr set")
	}
	if _, ok := n.Credentials(); ok {
		t.Error("failed Join must not store credentials")
	}

	n.JoinErr = nil
	n.ConnectErr = errors.New("no beacon")
	if err := n.Join(context.Background(), "home", "secret"); err == nil {
		t.Error("Join() should fail with ConnectErr set")
	}
	if n.Connected() {
		t.Error("link should stay down")
	}
}

func TestNetwork_ConnectHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := New()
	n.SetCredentials("home", "secret")
	if err := n.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestNetwork_AccessPoint(t *testing.T) {
	n := New()
	stop, err := n.StartAccessPoint(context.Background(), "sensor-setup")
	if err != nil {
		t.Fatalf("StartAccessPoint() error = %v", err)
	}
	if n.AccessPoint() != "sensor-setup" {
		t.Errorf("AccessPoint() = %q", n.AccessPoint())
	}
	if err := stop(); err != nil {
		t.Fatal(err)
	}
	if n.AccessPoint() != "" {
		t.Error("access point should be down after stop")
	}
}
