package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/prepare"
	"github.com/johnwards/orgseed/internal/soql"
	"github.com/johnwards/orgseed/internal/writer"
)

// runActivityTier implements spec.md §4.6 Stages 4 & 5: the polymorphic
// WhatId/WhoId remap shared by Task and Event. Activities attach to any
// prior tier, so the query runs against every source id currently in the
// Registry, not just one parent object's ids.
func (d *Driver) runActivityTier(ctx context.Context, plan *model.SeedPlan, activityObject string) error {
	d.Logger.StartSpinner(fmt.Sprintf("seeding %s", activityObject))

	sourceDesc, err := d.sourceInsp.DescribeObject(ctx, activityObject)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("describe %s (source): %v", activityObject, err))
		return fmt.Errorf("describe %s on source: %w", activityObject, err)
	}
	targetDesc, err := d.targetInsp.DescribeObject(ctx, activityObject)
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("describe %s (target): %v", activityObject, err))
		return fmt.Errorf("describe %s on target: %w", activityObject, err)
	}

	insertable := prepare.InsertableFields(sourceDesc, targetDesc, prepare.ActivitySystemFields)
	projection := soql.BuildProjection(insertable, "WhatId", "WhoId")

	allIDs := d.reg.AllSourceIDs()
	if len(allIDs) == 0 {
		d.Logger.StopSpinner(fmt.Sprintf("%s: no prior-tier records to attach to", activityObject))
		return nil
	}

	byID := make(map[string]model.Record)
	for _, field := range []string{"WhatId", "WhoId"} {
		rows, err := soql.QueryAllChunked(ctx, d.Source, allIDs, soql.ChunkSize, func(chunk []string) string {
			return soql.BuildQuery(projection, activityObject, field+" IN "+soql.InClause(chunk), model.AllRecords)
		})
		if err != nil {
			d.Logger.StopSpinnerFail(fmt.Sprintf("query %s by %s: %v", activityObject, field, err))
			return fmt.Errorf("query %s by %s: %w", activityObject, field, err)
		}
		for _, row := range rows {
			rec := model.Record(row)
			if id, ok := rec.StringValue("Id"); ok {
				byID[id] = rec // dedup by record id across the two queries
			}
		}
	}

	records := make([]model.Record, 0, len(byID))
	for _, rec := range byID {
		records = append(records, rec)
	}
	counter := d.results.Counter(activityObject)
	counter.Queried += len(records)

	sourceIDs := recordIDs(records)
	prepared := make([]model.Record, len(records))
	for i, rec := range records {
		out := make(model.Record, len(insertable))
		for _, field := range insertable {
			if field == "WhatId" || field == "WhoId" {
				continue // handled below via whole-registry lookup
			}
			if rec.Has(field) {
				out[field] = rec[field]
			}
		}
		for _, field := range []string{"WhatId", "WhoId"} {
			if rec.IsNull(field) || !rec.Has(field) {
				continue
			}
			sourceVal, _ := rec.StringValue(field)
			if targetID, found := d.reg.Lookup(sourceVal); found {
				out[field] = targetID
			} else {
				out[field] = nil // never drop an activity for an unresolved reference
			}
		}
		prepared[i] = out
	}

	out := writer.BatchInsert(ctx, d.Target, activityObject, prepared, sourceIDs, d.reg, d.results, plan.DryRun)
	counter.Inserted += out.Inserted
	counter.Failed += out.Failed

	d.Logger.StopSpinner(fmt.Sprintf("%s: %d queried, %d inserted, %d failed", activityObject, counter.Queried, counter.Inserted, counter.Failed))
	slog.Info("activity tier complete", "object", activityObject, "queried", counter.Queried, "inserted", counter.Inserted, "failed", counter.Failed)
	return nil
}
