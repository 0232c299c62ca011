package coordinator

import "testing"

func TestParameter_Accept(t *testing.T) {
	tests := []struct {
		name string
		size int
		in   string
		want string
	}{
		{"fits", 10, "broker", "broker"},
		{"exact", 6, "broker", "broker"},
		{"clipped", 3, "broker", "bro"},
		{"default size", 0, string(make([]byte, 70)), string(make([]byte, 64))},
		{"no split rune", 4, "ab☕", "ab"},
		{"whole rune fits", 5, "ab☕", "ab☕"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parameter{ID: "x", BufferSize: tt.size}
			if got := p.Accept(tt.in); got != tt.want {
				t.Errorf("Accept(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnected, "disconnected"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestEventKind_String(t *testing.T) {
	if EventConnected.String() != "connected" || EventDisconnected.String() != "disconnected" {
		t.Error("unexpected event kind names")
	}
	if EventKind(7).String() != "unknown" {
		t.Error("unknown kinds should render as unknown")
	}
}
