// Package prepare computes the insertable field set for a tier and
// transforms one source record into a target-shaped record, rewriting
// reference fields per the classifier's buckets and the Identity Registry.
// See spec.md §4.4.
package prepare

import (
	"fmt"

	"github.com/johnwards/orgseed/internal/classify"
	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/registry"
)

// SystemReadonlyFields is the fixed set stripped from every tier's
// insertable field set regardless of caller-supplied exclusions.
var SystemReadonlyFields = map[string]bool{
	"Id": true, "IsDeleted": true, "CreatedDate": true, "CreatedById": true,
	"LastModifiedDate": true, "LastModifiedById": true, "SystemModstamp": true,
	"LastActivityDate": true, "LastViewedDate": true, "LastReferencedDate": true,
}

// ActivitySystemFields is the additional exclusion set for Task/Event
// tiers, per spec.md §4.4 step 3.
var ActivitySystemFields = map[string]bool{
	"IsClosed": true, "IsArchived": true, "IsRecurrence": true, "IsHighPriority": true,
	"TaskSubtype": true, "EventSubtype": true, "IsGroupEvent": true, "GroupEventType": true,
	"IsChild": true, "IsAllDayEvent": true, "IsReminderSet": true, "RecurrenceActivityId": true,
}

// InsertableFields computes the tier's insertable field set: writable
// source fields, minus SystemReadonlyFields, minus extraExclusions, minus
// compound address/location fields, intersected with the target's writable
// fields.
func InsertableFields(source, target *model.ObjectDescriptor, extraExclusions map[string]bool) []string {
	targetWritable := target.WritableFieldNames()

	var out []string
	for _, f := range source.Fields {
		if !f.Writable {
			continue
		}
		if SystemReadonlyFields[f.Name] {
			continue
		}
		if extraExclusions[f.Name] {
			continue
		}
		if f.Type == model.FieldTypeAddress || f.Type == model.FieldTypeLocation {
			continue
		}
		if !targetWritable[f.Name] {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// Outcome is the result of preparing one record.
type Outcome struct {
	Record  model.Record
	Skipped bool
}

// Record transforms src into a target-shaped record per the insertable
// field set and the classifier's bucketing, looking up reference values in
// reg. sourceDesc supplies each field's Nullable flag for the
// required-reference-skip rule. sourceID and objectName identify the
// record in the error log if it must be skipped.
func Record(src model.Record, insertableFields []string, classifications map[string]classify.Classification, sourceDesc *model.ObjectDescriptor, reg *registry.Registry, errorLog *model.SeedResults, objectName, sourceID string) Outcome {
	out := make(model.Record, len(insertableFields))

	for _, field := range insertableFields {
		if !src.Has(field) {
			continue
		}

		cl, isRef := classifications[field]
		if !isRef {
			out[field] = src[field]
			continue
		}

		switch cl.Bucket {
		case classify.SystemReference:
			continue // strip regardless of null/non-null
		case classify.SelfReference:
			continue // carried over to the post-insert self-ref pass
		case classify.InScopeReference, classify.DataDependency:
			if src.IsNull(field) {
				out[field] = nil
				continue
			}
			sourceVal, _ := src.StringValue(field)
			targetID, found := reg.Lookup(sourceVal)
			switch {
			case found:
				out[field] = targetID
			case fieldIsNullable(sourceDesc, field):
				out[field] = nil
			default:
				errorLog.LogError(objectName, sourceID, "remap", fmt.Sprintf("required reference field %s (source value %s) has no Registry entry", field, sourceVal))
				return Outcome{Skipped: true}
			}
		}
	}

	return Outcome{Record: out}
}

func fieldIsNullable(desc *model.ObjectDescriptor, name string) bool {
	f, ok := desc.FieldByName(name)
	return ok && f.Nullable
}
