package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/johnwards/orgseed/internal/model"
)

// maxReportedErrors is the default truncation point for the error list, per
// spec.md §7's "a truncated error list (first 20 by default)".
const maxReportedErrors = 20

// Report renders results as the summary table + truncated error list
// spec.md §7 describes: one row per object with queried/inserted/updated/
// failed/skipped, then up to maxReportedErrors error rows. Modeled on the
// teacher's per-object-list import/export summary
// (internal/api/imports/handler.go's importObjectList), generalized from
// "one import job's object lists" to "one seed run's per-object counters".
func Report(results *model.SeedResults) string {
	var b strings.Builder

	objects := make([]string, 0, len(results.Counters))
	for name := range results.Counters {
		objects = append(objects, name)
	}
	sort.Strings(objects)

	fmt.Fprintf(&b, "%-24s %8s %8s %8s %8s %8s\n", "OBJECT", "QUERIED", "INSERTED", "UPDATED", "FAILED", "SKIPPED")
	for _, name := range objects {
		c := results.Counters[name]
		fmt.Fprintf(&b, "%-24s %8d %8d %8d %8d %8d\n", name, c.Queried, c.Inserted, c.Updated, c.Failed, c.Skipped)
	}

	if results.Files != nil {
		f := results.Files
		fmt.Fprintf(&b, "\nfiles: %d links queried, %d versions copied (%d failed), %d links created (%d failed), %d bytes\n",
			f.LinksQueried, f.VersionsCopied, f.VersionsFailed, f.LinksCreated, f.LinksFailed, f.TotalBytes)
	}

	if len(results.Errors) == 0 {
		return b.String()
	}

	shown := results.Errors
	truncated := 0
	if len(shown) > maxReportedErrors {
		truncated = len(shown) - maxReportedErrors
		shown = shown[:maxReportedErrors]
	}

	fmt.Fprintf(&b, "\nerrors (%d total):\n", len(results.Errors))
	for _, e := range shown {
		fmt.Fprintf(&b, "  [%s/%s] %s: %s\n", e.Object, e.Stage, e.SourceID, e.Message)
	}
	if truncated > 0 {
		fmt.Fprintf(&b, "  ... %d more omitted\n", truncated)
	}
	return b.String()
}
