package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{10, MinTerminalWidth},
		{80, 80},
		{300, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("Portal", "wifiprov run",
		Field{Key: "Access point", Value: "setup"},
		Field{Key: "Addr", Value: ":8080"},
	).SetWidth(80).Render()

	for _, want := range []string{"PORTAL", "wifiprov run", "setup", ":8080"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "setup") > strings.Index(out, ":8080") {
		t.Error("fields should render in the order given")
	}
}

func TestRenderFields_EmptyValue(t *testing.T) {
	out := renderFields([]Field{{Key: "mqtt_server"}})
	if !strings.Contains(out, "(empty)") {
		t.Errorf("renderFields() = %q, want (empty) marker", out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Connected", Field{Key: "SSID", Value: "home"}),
			want:   []string{"SUCCESS", "Connected", "home"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Submit failed", errors.New("join failed"), "Check the password."),
			want:   []string{"FAILED", "join failed", "Check the password."},
		},
		{
			name:   "warning",
			result: NewWarningResult("No portals found"),
			want:   []string{"WARNING", "No portals found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"erase\n", true},
		{"  erase  \n", true},
		{"yes\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out strings.Builder
		got := Confirm(strings.NewReader(tt.input), &out, "Erase", []string{"Credentials are forgotten"}, "erase")
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Credentials are forgotten") {
			t.Error("consequences not printed")
		}
	}
}
