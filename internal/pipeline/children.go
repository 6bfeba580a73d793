package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johnwards/orgseed/internal/classify"
	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/prepare"
	"github.com/johnwards/orgseed/internal/soql"
	"github.com/johnwards/orgseed/internal/writer"
)

// runChildTier implements the shared mechanics of spec.md §4.6 Stages 2 and
// 3: describe, classify in non-root mode, chunk-query by parentLookupField
// against parentSourceIDs, prepare, and insert or upsert. Returns the
// source ids that now have Registry entries under childObject, for the
// grandchild stage to parent off of.
func (d *Driver) runChildTier(ctx context.Context, plan *model.SeedPlan, parentObject string, parentSourceIDs []string, childObject, parentLookupField, externalIDField, stageLabel string) ([]string, error) {
	if len(parentSourceIDs) == 0 {
		d.Logger.Log(fmt.Sprintf("skipping %s: parent %s has no Registry entries", childObject, parentObject))
		return nil, nil
	}

	d.Logger.StartSpinner(fmt.Sprintf("[%s] seeding %s", stageLabel, childObject))

	sourceDesc, err := d.sourceInsp.DescribeObject(ctx, childObject)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("describe %s (source): %v", childObject, err))
		return nil, fmt.Errorf("describe %s on source: %w", childObject, err)
	}
	targetDesc, err := d.targetInsp.DescribeObject(ctx, childObject)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("describe %s (target): %v", childObject, err))
		return nil, fmt.Errorf("describe %s on target: %w", childObject, err)
	}

	classifications := classify.ByField(classify.ClassifyNonRoot(sourceDesc, d.reg.HasObject))
	insertable := prepare.InsertableFields(sourceDesc, targetDesc, nil)
	projection := soql.BuildProjection(insertable, parentLookupField)

	rows, err := soql.QueryAllChunked(ctx, d.Source, parentSourceIDs, soql.ChunkSize, func(chunk []string) string {
		return soql.BuildQuery(projection, childObject, parentLookupField+" IN "+soql.InClause(chunk), model.AllRecords)
	})
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("query %s: %v", childObject, err))
		return nil, fmt.Errorf("query %s: %w", childObject, err)
	}
	records := toRecords(rows)
	counter := d.results.Counter(childObject)
	counter.Queried += len(records)

	sourceIDs := recordIDs(records)
	var prepared []model.Record
	var preparedIDs []string
	for i, rec := range records {
		outcome := prepare.Record(rec, insertable, classifications, sourceDesc, d.reg, d.results, childObject, sourceIDs[i])
		if outcome.Skipped {
			counter.Skipped++
			continue
		}
		prepared = append(prepared, outcome.Record)
		preparedIDs = append(preparedIDs, sourceIDs[i])
	}

	if externalIDField != "" {
		out := writer.BatchUpsert(ctx, d.Target, childObject, prepared, preparedIDs, externalIDField, d.reg, d.results, plan.DryRun)
		counter.Inserted += out.Inserted
		counter.Updated += out.Updated
		counter.Failed += out.Failed
	} else {
		out := writer.BatchInsert(ctx, d.Target, childObject, prepared, preparedIDs, d.reg, d.results, plan.DryRun)
		counter.Inserted += out.Inserted
		counter.Failed += out.Failed
	}

	d.Logger.StopSpinner(fmt.Sprintf("%s: %d queried, %d inserted, %d updated, %d failed, %d skipped",
		childObject, counter.Queried, counter.Inserted, counter.Updated, counter.Failed, counter.Skipped))
	slog.Info("child tier complete", "stage", stageLabel, "object", childObject, "parent", parentObject,
		"queried", counter.Queried, "inserted", counter.Inserted, "updated", counter.Updated, "failed", counter.Failed, "skipped", counter.Skipped)

	return d.reg.SourceIDs(childObject), nil
}
