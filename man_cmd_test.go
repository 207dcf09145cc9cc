package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestVoicesCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	if err := voicesCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("voices: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Engines:", "Profiles:", "piper-amy", "engine=piper"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// The in-process mock engine always probes available, so at least one
	// engine line must say so even on a machine with no TTS binaries.
	var mockAvailable bool
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "mock") && strings.Contains(line, "available") && !strings.Contains(line, "unavailable") {
			mockAvailable = true
		}
	}
	if !mockAvailable {
		t.Errorf("mock engine not reported available:\n%s", out)
	}
}
