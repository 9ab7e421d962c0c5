package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	i := Info{Version: "v1.2.3", Commit: "abc123", BuildDate: "2026-01-01T00:00:00Z", GoVersion: "go1.25.5"}
	got := i.String()
	for _, want := range []string{"marks v1.2.3", "commit=abc123", "built=2026-01-01T00:00:00Z", "go=go1.25.5"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q does not contain %q", got, want)
		}
	}

	if Get().GoVersion == "" {
		t.Error("GoVersion should default to the runtime version")
	}
}
