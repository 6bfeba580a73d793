// Package writer performs batched inserts and upserts against a target
// Connection, registering Identity Registry entries as writes succeed. See
// spec.md §4.5.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/orgconn"
	"github.com/johnwards/orgseed/internal/registry"
	"github.com/johnwards/orgseed/internal/soql"
)

// BatchSize is the platform bulk-write batch size limit.
const BatchSize = soql.ChunkSize

// InsertOutcome tallies one batchInsert call.
type InsertOutcome struct {
	Inserted int
	Failed   int
}

// UpsertOutcome tallies one batchUpsert call.
type UpsertOutcome struct {
	Inserted int
	Updated  int
	Failed   int
}

// FormatError joins a WriteOutcome's error entries as
// "STATUS_CODE: message [field1, field2]"; an empty list yields
// "Unknown error". Exported for callers outside this package (e.g. the
// file sub-pipeline) that need the same formatting for a single
// WriteOutcome's errors.
func FormatError(errs []orgconn.WriteError) string {
	return formatError(errs)
}

func formatError(errs []orgconn.WriteError) string {
	if len(errs) == 0 {
		return "Unknown error"
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		if len(e.Fields) == 0 {
			parts[i] = fmt.Sprintf("%s: %s", e.StatusCode, e.Message)
			continue
		}
		parts[i] = fmt.Sprintf("%s: %s [%s]", e.StatusCode, e.Message, strings.Join(e.Fields, ", "))
	}
	return strings.Join(parts, "; ")
}

// BatchInsert inserts records (each index-aligned with sourceIDs) against
// object in batches of BatchSize. In dry-run mode it performs no network
// call, registers no Registry entries, and reports every record as
// inserted, per spec.md's dry-run purity invariant.
func BatchInsert(ctx context.Context, conn orgconn.Connection, object string, records []model.Record, sourceIDs []string, reg *registry.Registry, results *model.SeedResults, dryRun bool) InsertOutcome {
	if dryRun {
		return InsertOutcome{Inserted: len(records)}
	}

	var out InsertOutcome
	for start := 0; start < len(records); start += BatchSize {
		end := start + BatchSize
		if end > len(records) {
			end = len(records)
		}
		batchRecords := toPayload(records[start:end])
		batchIDs := sourceIDs[start:end]

		outcomes, err := conn.Create(ctx, object, batchRecords)
		if err != nil {
			for _, id := range batchIDs {
				out.Failed++
				results.LogError(object, id, "insert", err.Error())
			}
			continue
		}
		for j, oc := range outcomes {
			sourceID := batchIDs[j]
			if oc.Success && oc.ID != "" {
				reg.Set(object, sourceID, oc.ID)
				out.Inserted++
				continue
			}
			out.Failed++
			results.LogError(object, sourceID, "insert", formatError(oc.Errors))
		}
	}
	return out
}

// BatchUpdate updates records (each carrying a target Id, index-aligned
// with sourceIDs for error-log attribution) against object in batches of
// BatchSize, logging per-record failures under stage. Used for the
// post-Stage-1 self-ref pass ("self-ref update") and any other
// already-inserted-record patch.
func BatchUpdate(ctx context.Context, conn orgconn.Connection, object string, records []model.Record, sourceIDs []string, results *model.SeedResults, stage string) (updated, failed int) {
	for start := 0; start < len(records); start += BatchSize {
		end := start + BatchSize
		if end > len(records) {
			end = len(records)
		}
		batchRecords := toPayload(records[start:end])
		batchIDs := sourceIDs[start:end]

		outcomes, err := conn.Update(ctx, object, batchRecords)
		if err != nil {
			for _, id := range batchIDs {
				failed++
				results.LogError(object, id, stage, err.Error())
			}
			continue
		}
		for j, oc := range outcomes {
			if oc.Success {
				updated++
				continue
			}
			failed++
			results.LogError(object, batchIDs[j], stage, formatError(oc.Errors))
		}
	}
	return updated, failed
}

// BatchUpsert upserts records against object keyed on externalIDField, in
// batches of BatchSize. After each batch, source ids with no Registry entry
// (because the upsert response omitted an id for an updated record) are
// recovered by querying the target for Id/externalIDField restricted to the
// batch's distinct external-id values.
func BatchUpsert(ctx context.Context, conn orgconn.Connection, object string, records []model.Record, sourceIDs []string, externalIDField string, reg *registry.Registry, results *model.SeedResults, dryRun bool) UpsertOutcome {
	if dryRun {
		return UpsertOutcome{Inserted: len(records)}
	}

	var out UpsertOutcome
	for start := 0; start < len(records); start += BatchSize {
		end := start + BatchSize
		if end > len(records) {
			end = len(records)
		}
		batchRecords := toPayload(records[start:end])
		batchIDs := sourceIDs[start:end]

		outcomes, err := conn.Upsert(ctx, object, batchRecords, externalIDField)
		if err != nil {
			for _, id := range batchIDs {
				out.Failed++
				results.LogError(object, id, "upsert", err.Error())
			}
			continue
		}

		var unresolved []string
		for j, oc := range outcomes {
			sourceID := batchIDs[j]
			if !oc.Success {
				out.Failed++
				results.LogError(object, sourceID, "upsert", formatError(oc.Errors))
				continue
			}
			if oc.Created {
				out.Inserted++
			} else {
				out.Updated++
			}
			if oc.ID != "" {
				reg.Set(object, sourceID, oc.ID)
			} else {
				unresolved = append(unresolved, sourceID)
			}
		}

		if len(unresolved) > 0 {
			recoverUnresolved(ctx, conn, object, records[start:end], batchIDs, unresolved, externalIDField, reg, results)
		}
	}
	return out
}

// recoverUnresolved handles upsert responses that omitted a target id
// (typical for updated, not created, records): it collects the distinct
// external-id values among unresolved source ids, queries the target for
// Id/externalIDField restricted to those values, and registers each mapping
// by matching external-id value back to source id.
//
// The recovery is all-or-nothing: every unresolved record's external-id
// value must be non-empty and must match exactly one target row, or the
// whole recovery for this batch fails with a single upsert-stage error
// rather than registering a partial, potentially-mismatched set of
// mappings.
func recoverUnresolved(ctx context.Context, conn orgconn.Connection, object string, batchRecords []model.Record, batchIDs []string, unresolved []string, externalIDField string, reg *registry.Registry, results *model.SeedResults) {
	idByExternalValue := make(map[string]string, len(unresolved)) // external value -> sourceID
	unresolvedSet := make(map[string]bool, len(unresolved))
	for _, id := range unresolved {
		unresolvedSet[id] = true
	}
	for i, rec := range batchRecords {
		sourceID := batchIDs[i]
		if !unresolvedSet[sourceID] {
			continue
		}
		val, ok := rec.StringValue(externalIDField)
		if !ok || val == "" {
			results.LogError(object, "", "upsert", fmt.Sprintf("cannot recover target ids for this batch: record %s has an empty %s", sourceID, externalIDField))
			return
		}
		idByExternalValue[val] = sourceID
	}
	if len(idByExternalValue) == 0 {
		return
	}

	values := make([]string, 0, len(idByExternalValue))
	for v := range idByExternalValue {
		values = append(values, v)
	}

	where := fmt.Sprintf("%s IN %s", externalIDField, soql.InClause(values))
	query := soql.BuildQuery(soql.BuildProjection([]string{externalIDField}), object, where, model.AllRecords)
	rows, err := soql.QueryAll(ctx, conn, query)
	if err != nil {
		results.LogError(object, "", "upsert", fmt.Sprintf("cannot recover target ids for this batch: %v", err))
		return
	}

	seenValue := make(map[string]int)
	rowByValue := make(map[string]map[string]any)
	for _, row := range rows {
		val := fmt.Sprint(row[externalIDField])
		seenValue[val]++
		rowByValue[val] = row
	}

	for val := range idByExternalValue {
		if seenValue[val] != 1 {
			results.LogError(object, "", "upsert", fmt.Sprintf("cannot recover target ids for this batch: external id %q matched %d target rows, want exactly 1", val, seenValue[val]))
			return
		}
	}

	for val, sourceID := range idByExternalValue {
		reg.Set(object, sourceID, fmt.Sprint(rowByValue[val]["Id"]))
	}
}

func toPayload(records []model.Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
