package protocol

import (
	"strings"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line, cmd, arg string
	}{
		{"USERNAME|Alice", "USERNAME", "Alice"},
		{"/chat|hello there", "/chat", "hello there"},
		{"/defend|1 2 3", "/defend", "1 2 3"},
		{"/ready", "/ready", ""},
		{"/chat|with|pipes", "/chat", "with|pipes"},
		{"/create|", "/create", ""},
	}
	for _, tc := range cases {
		cmd, arg := SplitCommand(tc.line)
		if cmd != tc.cmd || arg != tc.arg {
			t.Errorf("SplitCommand(%q) = %q, %q; want %q, %q", tc.line, cmd, arg, tc.cmd, tc.arg)
		}
	}
}

func TestTags(t *testing.T) {
	if got := Server("hi"); got != "[SERVER] hi" {
		t.Errorf("Server(hi) = %q", got)
	}
	if got := Error("no"); got != "[ERROR] no" {
		t.Errorf("Error(no) = %q", got)
	}
}

func TestBox(t *testing.T) {
	lines := Box("TITLE", "one", "two")
	if len(lines) != 6 {
		t.Fatalf("Box produced %d lines, want 6", len(lines))
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"TITLE", "one", "two"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Box output missing %q:\n%s", want, joined)
		}
	}
}
