// Package pipeline executes the six-stage seeding pipeline described in
// spec.md §4.6: core object, children, grandchildren, activities (tasks,
// events), and the binary-file sub-pipeline, threading one Identity
// Registry between them. See spec.md §5 for the single-threaded cooperative
// scheduling model this package implements.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johnwards/orgseed/internal/classify"
	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/orgconn"
	"github.com/johnwards/orgseed/internal/prepare"
	"github.com/johnwards/orgseed/internal/registry"
	"github.com/johnwards/orgseed/internal/schema"
	"github.com/johnwards/orgseed/internal/soql"
	"github.com/johnwards/orgseed/internal/writer"
)

// Driver runs one SeedPlan against a borrowed source and target Connection.
// It never closes or mutates either connection's auth state (spec.md §5).
type Driver struct {
	Source orgconn.Connection
	Target orgconn.Connection
	Logger Logger

	sourceInsp *schema.Inspector
	targetInsp *schema.Inspector
	reg        *registry.Registry
	results    *model.SeedResults
}

// New returns a Driver ready to run SeedPlans against source and target. A
// fresh Driver should be used per run: the Registry and SeedResults it
// accumulates live exactly as long as one Run call, per spec.md §3.
func New(source, target orgconn.Connection, logger Logger) *Driver {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Driver{Source: source, Target: target, Logger: logger}
}

// Run executes plan's six stages in order. Between stages (and before each
// child and grandchild tier inside the per-child/per-grandchild loops) it consults
// plan.ShouldAbort; once that flips true the driver returns immediately
// with whatever SeedResults have accumulated so far and state PartialDone.
func (d *Driver) Run(ctx context.Context, plan *model.SeedPlan) (*model.SeedResults, State, error) {
	d.sourceInsp = schema.New(d.Source)
	d.targetInsp = schema.New(d.Target)
	d.reg = registry.New()
	d.results = model.NewSeedResults(plan.RootObject)

	slog.Info("pipeline run starting", "rootObject", plan.RootObject, "children", len(plan.Children), "dryRun", plan.DryRun)

	if err := d.runStage1(ctx, plan); err != nil {
		slog.Error("stage1 failed", "object", plan.RootObject, "error", err)
		return d.results, Stage1, err
	}
	if plan.Aborted() {
		return d.results, PartialDone, nil
	}
	core := d.results.Counter(plan.RootObject)
	if !plan.DryRun && core.Inserted == 0 && core.Updated == 0 {
		return d.results, EarlyDone, nil
	}

	d.results.ChildrenRun = true
	childRegistryIDs := make(map[string][]string, len(plan.Children)) // child object -> its own registered source ids, for grandchildren
	for _, child := range plan.Children {
		if plan.Aborted() {
			return d.results, PartialDone, nil
		}
		ids, err := d.runChildTier(ctx, plan, plan.RootObject, d.reg.SourceIDs(plan.RootObject), child.ObjectName, child.ParentLookupField, child.ExternalIDField, "Stage2")
		if err != nil {
			return d.results, Stage2, err
		}
		childRegistryIDs[child.ObjectName] = ids
	}
	if plan.Aborted() {
		return d.results, PartialDone, nil
	}

	d.results.GrandchildrenRun = true
	for _, child := range plan.Children {
		parentIDs := childRegistryIDs[child.ObjectName]
		if len(parentIDs) == 0 {
			d.Logger.Log(fmt.Sprintf("skipping grandchildren of %s: no records were written", child.ObjectName))
			continue
		}
		for _, gc := range child.Grandchildren {
			if plan.Aborted() {
				return d.results, PartialDone, nil
			}
			if _, err := d.runChildTier(ctx, plan, child.ObjectName, parentIDs, gc.ObjectName, gc.ParentLookupField, gc.ExternalIDField, "Stage3"); err != nil {
				return d.results, Stage3, err
			}
		}
	}
	if plan.Aborted() {
		return d.results, PartialDone, nil
	}

	if plan.IncludeTasks {
		d.results.TasksRun = true
		if err := d.runActivityTier(ctx, plan, "Task"); err != nil {
			return d.results, Stage4, err
		}
	}
	if plan.Aborted() {
		return d.results, PartialDone, nil
	}

	if plan.IncludeEvents {
		d.results.EventsRun = true
		if err := d.runActivityTier(ctx, plan, "Event"); err != nil {
			return d.results, Stage5, err
		}
	}
	if plan.Aborted() {
		return d.results, PartialDone, nil
	}

	if plan.IncludeFiles {
		d.results.FilesRun = true
		if err := d.runFileTier(ctx, plan); err != nil {
			return d.results, Stage6, err
		}
	}

	slog.Info("pipeline run complete", "rootObject", plan.RootObject)
	return d.results, Done, nil
}

// runStage1 implements spec.md §4.6 Stage 1.
func (d *Driver) runStage1(ctx context.Context, plan *model.SeedPlan) error {
	d.Logger.StartSpinner(fmt.Sprintf("querying %s", plan.RootObject))

	sourceDesc, err := d.sourceInsp.DescribeObject(ctx, plan.RootObject)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("describe %s (source): %v", plan.RootObject, err))
		return fmt.Errorf("describe %s on source: %w", plan.RootObject, err)
	}
	targetDesc, err := d.targetInsp.DescribeObject(ctx, plan.RootObject)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("describe %s (target): %v", plan.RootObject, err))
		return fmt.Errorf("describe %s on target: %w", plan.RootObject, err)
	}

	classifications := classify.ByField(classify.ClassifyRoot(sourceDesc, plan.RootObject))
	insertable := prepare.InsertableFields(sourceDesc, targetDesc, nil)
	projection := soql.BuildProjection(insertable)
	q := soql.BuildQuery(projection, plan.RootObject, plan.Where, plan.RecordCount)

	rows, err := soql.QueryAll(ctx, d.Source, q)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("query %s: %v", plan.RootObject, err))
		return fmt.Errorf("query %s: %w", plan.RootObject, err)
	}
	sourceRecords := toRecords(rows)
	d.results.Counter(plan.RootObject).Queried = len(sourceRecords)
	d.Logger.StopSpinner(fmt.Sprintf("queried %d %s records", len(sourceRecords), plan.RootObject))

	d.seedDataDependencies(ctx, plan, classifications, sourceRecords)
	batch := d.prependSelfReferenceParents(ctx, plan, classifications, sourceRecords)

	sourceIDs := recordIDs(batch)
	var prepared []model.Record
	var preparedIDs []string
	classByField := classifications
	for i, rec := range batch {
		outcome := prepare.Record(rec, insertable, classByField, sourceDesc, d.reg, d.results, plan.RootObject, sourceIDs[i])
		if outcome.Skipped {
			d.results.Counter(plan.RootObject).Skipped++
			continue
		}
		prepared = append(prepared, outcome.Record)
		preparedIDs = append(preparedIDs, sourceIDs[i])
	}

	counter := d.results.Counter(plan.RootObject)
	if plan.RootExternalID != "" {
		out := writer.BatchUpsert(ctx, d.Target, plan.RootObject, prepared, preparedIDs, plan.RootExternalID, d.reg, d.results, plan.DryRun)
		counter.Inserted += out.Inserted
		counter.Updated += out.Updated
		counter.Failed += out.Failed
	} else {
		out := writer.BatchInsert(ctx, d.Target, plan.RootObject, prepared, preparedIDs, d.reg, d.results, plan.DryRun)
		counter.Inserted += out.Inserted
		counter.Failed += out.Failed
	}
	slog.Info("stage1 complete", "object", plan.RootObject, "inserted", counter.Inserted, "updated", counter.Updated, "failed", counter.Failed, "skipped", counter.Skipped)

	if plan.DryRun {
		return nil
	}
	return d.postInsertSelfRefUpdate(ctx, plan, classifications, sourceRecords)
}

// seedDataDependencies shallow-seeds each DataDependency target: queries
// the exact source ids referenced by the batch, strips ALL reference
// fields on the dependency records (no recursion), batch-inserts, and
// registers ids. If describe fails, the field is demoted to
// SystemReference so the core's own prepare strips rather than remaps it
// (spec.md §7's dependency-pull-failure policy).
func (d *Driver) seedDataDependencies(ctx context.Context, plan *model.SeedPlan, classifications map[string]classify.Classification, sourceRecords []model.Record) {
	for field, cl := range classifications {
		if cl.Bucket != classify.DataDependency {
			continue
		}
		ids := distinctNonNullStrings(sourceRecords, field)
		if len(ids) == 0 {
			continue
		}

		depSourceDesc, err := d.sourceInsp.DescribeObject(ctx, cl.Target)
		if err != nil {
			d.Logger.StopSpinnerFail(fmt.Sprintf("cannot describe data dependency %s: %v", cl.Target, err))
			classifications[field] = classify.Classification{Field: field, Bucket: classify.SystemReference}
			continue
		}
		depTargetDesc, err := d.targetInsp.DescribeObject(ctx, cl.Target)
		if err != nil {
			d.Logger.StopSpinnerFail(fmt.Sprintf("cannot describe data dependency %s on target: %v", cl.Target, err))
			classifications[field] = classify.Classification{Field: field, Bucket: classify.SystemReference}
			continue
		}

		rows, err := soql.QueryAllChunked(ctx, d.Source, ids, soql.ChunkSize, func(chunk []string) string {
			projection := soql.BuildProjection(prepare.InsertableFields(depSourceDesc, depTargetDesc, nil))
			return soql.BuildQuery(projection, cl.Target, "Id IN "+soql.InClause(chunk), model.AllRecords)
		})
		if err != nil {
			d.Logger.StopSpinnerFail(fmt.Sprintf("cannot query data dependency %s: %v", cl.Target, err))
			classifications[field] = classify.Classification{Field: field, Bucket: classify.SystemReference}
			continue
		}
		depRecords := toRecords(rows)
		depIDs := recordIDs(depRecords)
		slog.Debug("data dependency seeded", "object", cl.Target, "field", field, "records", len(depRecords))

		// Strip every reference field; no recursion into the dependency's own dependencies.
		strippedFields := stripReferenceFields(depSourceDesc, depTargetDesc)
		stripped := make([]model.Record, len(depRecords))
		for i, rec := range depRecords {
			out := make(model.Record, len(strippedFields))
			for _, f := range strippedFields {
				if rec.Has(f) {
					out[f] = rec[f]
				}
			}
			stripped[i] = out
		}

		writer.BatchInsert(ctx, d.Target, cl.Target, stripped, depIDs, d.reg, d.results, plan.DryRun)
	}
}

func stripReferenceFields(source, target *model.ObjectDescriptor) []string {
	insertable := prepare.InsertableFields(source, target, nil)
	targetByName := make(map[string]model.FieldDescriptor, len(source.Fields))
	for _, f := range source.Fields {
		targetByName[f.Name] = f
	}
	out := make([]string, 0, len(insertable))
	for _, name := range insertable {
		if targetByName[name].Type == model.FieldTypeReference {
			continue
		}
		out = append(out, name)
	}
	return out
}

// prependSelfReferenceParents collects, for every SelfReference field,
// referenced source ids that lie outside the current batch, queries them,
// and prepends them so parents are written before children in the same
// insert.
func (d *Driver) prependSelfReferenceParents(ctx context.Context, plan *model.SeedPlan, classifications map[string]classify.Classification, sourceRecords []model.Record) []model.Record {
	inBatch := make(map[string]bool, len(sourceRecords))
	for _, r := range sourceRecords {
		if id, ok := r.StringValue("Id"); ok {
			inBatch[id] = true
		}
	}

	var missing []string
	seenMissing := make(map[string]bool)
	for field, cl := range classifications {
		if cl.Bucket != classify.SelfReference {
			continue
		}
		for _, r := range sourceRecords {
			v, ok := r.StringValue(field)
			if !ok || inBatch[v] || seenMissing[v] {
				continue
			}
			seenMissing[v] = true
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return sourceRecords
	}

	sourceDesc, _ := d.sourceInsp.DescribeObject(ctx, plan.RootObject)
	insertable := prepare.InsertableFields(sourceDesc, sourceDesc, nil)
	rows, err := soql.QueryAllChunked(ctx, d.Source, missing, soql.ChunkSize, func(chunk []string) string {
		return soql.BuildQuery(soql.BuildProjection(insertable), plan.RootObject, "Id IN "+soql.InClause(chunk), model.AllRecords)
	})
	if err != nil {
		d.Logger.Warn(fmt.Sprintf("could not pre-fetch self-reference parents: %v", err))
		return sourceRecords
	}
	parents := toRecords(rows)
	return append(parents, sourceRecords...)
}

// postInsertSelfRefUpdate builds and submits the post-insert update list:
// for each written source record with a resolved target id AND at least
// one self-ref field now resolvable via the Registry, an update record
// { Id: targetId, selfRefField: targetRefId, ... }.
func (d *Driver) postInsertSelfRefUpdate(ctx context.Context, plan *model.SeedPlan, classifications map[string]classify.Classification, sourceRecords []model.Record) error {
	var selfRefFields []string
	for field, cl := range classifications {
		if cl.Bucket == classify.SelfReference {
			selfRefFields = append(selfRefFields, field)
		}
	}
	if len(selfRefFields) == 0 {
		return nil
	}

	var updates []model.Record
	var updateSourceIDs []string
	for _, rec := range sourceRecords {
		sourceID, ok := rec.StringValue("Id")
		if !ok {
			continue
		}
		targetID, ok := d.reg.Get(plan.RootObject, sourceID)
		if !ok {
			continue
		}
		update := model.Record{"Id": targetID}
		resolvedAny := false
		for _, field := range selfRefFields {
			refSourceID, ok := rec.StringValue(field)
			if !ok {
				continue
			}
			refTargetID, ok := d.reg.Lookup(refSourceID)
			if !ok {
				continue
			}
			update[field] = refTargetID
			resolvedAny = true
		}
		if resolvedAny {
			updates = append(updates, update)
			updateSourceIDs = append(updateSourceIDs, sourceID)
		}
	}
	if len(updates) == 0 {
		return nil
	}
	writer.BatchUpdate(ctx, d.Target, plan.RootObject, updates, updateSourceIDs, d.results, "self-ref update")
	return nil
}
