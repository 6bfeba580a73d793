package model

// AllRecords is the sentinel record-count value meaning "no LIMIT clause".
const AllRecords = -1

// GrandchildSpec declares one grandchild tier nested under a child.
type GrandchildSpec struct {
	ObjectName        string
	ParentLookupField string
	ExternalIDField   string // empty means insert, not upsert
}

// ChildSpec declares one child tier under the root, with its own nested
// grandchildren.
type ChildSpec struct {
	ObjectName        string
	ParentLookupField string
	ExternalIDField   string // empty means insert, not upsert
	Grandchildren     []GrandchildSpec
}

// SeedPlan is the fully-resolved input to the Pipeline Driver. Building one
// from CLI flags or an interactive prompt loop is an external concern (see
// internal/cli); the driver only ever sees a SeedPlan.
type SeedPlan struct {
	RootObject        string
	RootExternalID    string // empty means insert, not upsert
	Children          []ChildSpec
	IncludeTasks      bool
	IncludeEvents     bool
	IncludeFiles      bool
	DryRun            bool
	RecordCount       int // positive, or AllRecords
	Where             string
	ShouldAbort       func() bool
}

// Aborted reports whether the plan's cancellation probe is set and has
// fired. A nil probe never aborts.
func (p *SeedPlan) Aborted() bool {
	return p.ShouldAbort != nil && p.ShouldAbort()
}
