package utils

import (
	"testing"
)

func TestOsUtils(t *testing.T) {
	if OSName == "" {
		t.Fatal("OSName: empty")
	}
	if LinuxClktck <= 0 {
		t.Fatalf("LinuxClktck: want: > 0, got: %d", LinuxClktck)
	}
	wantClktckSec := 1. / float64(LinuxClktck)
	if LinuxClktckSec != wantClktckSec {
		t.Fatalf("LinuxClktckSec: want: %.06f, got: %.06f", wantClktckSec, LinuxClktckSec)
	}

	t.Logf(`
OSName:         %q
OSRelease:      %q
OSBtime:        %s
LinuxClktck:    %d
LinuxClktckSec: %.06f
`,
		OSName, OSRelease, OSBtime, LinuxClktck, LinuxClktckSec,
	)
}
