package cli_test

import (
	"testing"

	"github.com/johnwards/orgseed/internal/cli"
	"github.com/johnwards/orgseed/internal/model"
)

func TestParseCountAll(t *testing.T) {
	n, err := cli.ParseCount("All")
	if err != nil {
		t.Fatalf("ParseCount: %v", err)
	}
	if n != model.AllRecords {
		t.Errorf("n = %d, want AllRecords", n)
	}
}

func TestParseCountPositiveInteger(t *testing.T) {
	n, err := cli.ParseCount("25")
	if err != nil {
		t.Fatalf("ParseCount: %v", err)
	}
	if n != 25 {
		t.Errorf("n = %d, want 25", n)
	}
}

func TestParseCountRejectsZeroAndNegative(t *testing.T) {
	for _, raw := range []string{"0", "-5", "not-a-number"} {
		if _, err := cli.ParseCount(raw); err == nil {
			t.Errorf("ParseCount(%q): want error, got nil", raw)
		}
	}
}

func TestFlagsNonInteractive(t *testing.T) {
	full := cli.Flags{SourceOrg: "src", TargetOrg: "tgt", Object: "Account"}
	if !full.NonInteractive() {
		t.Errorf("NonInteractive() = false, want true when -s/-t/-o all set")
	}

	partial := cli.Flags{SourceOrg: "src", Object: "Account"}
	if partial.NonInteractive() {
		t.Errorf("NonInteractive() = true, want false when -t is missing")
	}
}
