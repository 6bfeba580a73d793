package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/johnwards/orgseed/internal/model"
)

// Flags mirrors spec.md §6's command surface exactly: source/target org,
// root object, CSV child/grandchild object names, the three include
// toggles, record count (positive integer or "All"), a WHERE clause, the
// root upsert external-id field, and dry-run.
type Flags struct {
	SourceOrg     string
	TargetOrg     string
	Object        string
	Children      []string
	Grandchildren []string
	IncludeTasks  bool
	IncludeEvents bool
	IncludeFiles  bool
	Count         string
	Where         string
	UpsertField   string
	DryRun        bool
}

// NonInteractive reports whether -s, -t, -o are all present, per spec.md
// §6's dual-routing rule.
func (f Flags) NonInteractive() bool {
	return f.SourceOrg != "" && f.TargetOrg != "" && f.Object != ""
}

// ParseCount converts the --count flag's value into SeedPlan.RecordCount:
// a positive integer, or the AllRecords sentinel for the literal string
// "All" (case-insensitive), per spec.md §6.
func ParseCount(raw string) (int, error) {
	if strings.EqualFold(raw, "All") {
		return model.AllRecords, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("--count must be a positive integer or %q: %w", "All", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("--count must be a positive integer or %q, got %d", "All", n)
	}
	return n, nil
}
