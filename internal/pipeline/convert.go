package pipeline

import "github.com/johnwards/orgseed/internal/model"

func toRecords(rows []map[string]any) []model.Record {
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = model.Record(r)
	}
	return out
}

// distinctNonNullStrings returns the distinct, order-preserving set of
// non-null string values at field across records.
func distinctNonNullStrings(records []model.Record, field string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		v, ok := r.StringValue(field)
		if !ok {
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func recordIDs(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		id, _ := r.StringValue("Id")
		out[i] = id
	}
	return out
}
