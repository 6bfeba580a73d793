// Package soql builds and executes SOQL-shaped queries against a
// Connection: projection/query string assembly, literal escaping, and
// pagination/chunking helpers. See spec.md §4.2.
package soql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/orgconn"
)

// ChunkSize bounds both the IN-clause length under the platform's SOQL size
// limit and the platform's bulk-write batch size.
const ChunkSize = 200

// EscapeLiteral backslash-escapes single quotes so s is safe to interpolate
// inside a SOQL string literal.
func EscapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

// BuildProjection returns the deduplicated union of fields and extras,
// always including Id, joined comma-space. Field order is preserved:
// fields first, then extras, with later duplicates dropped.
func BuildProjection(fields []string, extras ...string) string {
	seen := map[string]bool{"Id": true}
	out := []string{"Id"}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, f := range fields {
		add(f)
	}
	for _, e := range extras {
		add(e)
	}
	return strings.Join(out, ", ")
}

// BuildQuery composes "SELECT projection FROM object [WHERE where] [LIMIT
// limit]". limit == model.AllRecords omits the LIMIT clause. An empty where
// omits the WHERE clause.
func BuildQuery(projection, object, where string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", projection, object)
	if where != "" {
		fmt.Fprintf(&b, " WHERE %s", where)
	}
	if limit != model.AllRecords {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

// QueryAll executes soql and follows pagination cursors until exhausted,
// returning every record across all pages.
func QueryAll(ctx context.Context, conn orgconn.Connection, soql string) ([]map[string]any, error) {
	slog.Debug("soql query", "soql", soql)
	page, err := conn.Query(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out := append([]map[string]any(nil), page.Records...)
	pages := 1
	for !page.Done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err = conn.QueryMore(ctx, page.NextRecordsURL)
		if err != nil {
			return nil, fmt.Errorf("queryMore: %w", err)
		}
		out = append(out, page.Records...)
		pages++
	}
	slog.Debug("soql query complete", "records", len(out), "pages", pages)
	return out, nil
}

// ChunkValues splits values into fixed-size chunks of chunkSize (or
// ChunkSize if chunkSize <= 0).
func ChunkValues(values []string, chunkSize int) [][]string {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	var chunks [][]string
	for i := 0; i < len(values); i += chunkSize {
		end := i + chunkSize
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}

// QueryAllChunked splits values into chunks of chunkSize (ChunkSize if <=
// 0), invokes buildSoqlForChunk per chunk, runs each through QueryAll, and
// concatenates the results in chunk order.
func QueryAllChunked(ctx context.Context, conn orgconn.Connection, values []string, chunkSize int, buildSoqlForChunk func(chunk []string) string) ([]map[string]any, error) {
	chunks := ChunkValues(values, chunkSize)
	slog.Debug("soql chunked query", "values", len(values), "chunks", len(chunks))
	var out []map[string]any
	for _, chunk := range chunks {
		records, err := QueryAll(ctx, conn, buildSoqlForChunk(chunk))
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// InClause renders values as a SOQL IN-list: ('v1','v2',...), each value
// escaped.
func InClause(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + EscapeLiteral(v) + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
