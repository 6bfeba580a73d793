// Package fake provides an in-memory orgconn.Connection double for tests,
// playing the role the teacher's internal/testhelpers.NewTestDB plays: a
// network-free stand-in that exercises the real pipeline code against
// canned schema and data instead of a live org.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/johnwards/orgseed/internal/orgconn"
)

// Org is an in-memory CRM org: a set of object schemas and their rows.
type Org struct {
	mu       sync.Mutex
	globals  []orgconn.GlobalEntry
	describe map[string]*orgconn.DescribeResult
	rows     map[string][]map[string]any // objectName -> rows, each carrying an "Id"
	nextSeq  map[string]int
	keyPrefixes map[string]string // objectName -> 3-char prefix
}

// NewOrg returns an empty in-memory org.
func NewOrg() *Org {
	return &Org{
		describe:    make(map[string]*orgconn.DescribeResult),
		rows:        make(map[string][]map[string]any),
		nextSeq:     make(map[string]int),
		keyPrefixes: make(map[string]string),
	}
}

// RegisterObject adds (or replaces) an object's schema and assigns it a key
// prefix for generated ids, mirroring a real org's stable per-type prefix.
func (o *Org) RegisterObject(name, keyPrefix string, queryable, createable bool, describe orgconn.DescribeResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.globals = append(o.globals, orgconn.GlobalEntry{
		Name: name, Label: name, Queryable: queryable, Createable: createable, KeyPrefix: keyPrefix,
	})
	d := describe
	o.describe[name] = &d
	o.keyPrefixes[name] = keyPrefix
	if _, ok := o.rows[name]; !ok {
		o.rows[name] = nil
	}
}

// SeedRow inserts a row directly (bypassing Create), for pre-populating the
// source org in a test's fixture setup. If row has no "Id", one is assigned.
func (o *Org) SeedRow(objectName string, row map[string]any) map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := cloneRow(row)
	if _, ok := r["Id"]; !ok {
		r["Id"] = o.nextID(objectName)
	}
	o.rows[objectName] = append(o.rows[objectName], r)
	return r
}

// Rows returns a snapshot of objectName's rows, for test assertions.
func (o *Org) Rows(objectName string) []map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]map[string]any, len(o.rows[objectName]))
	for i, r := range o.rows[objectName] {
		out[i] = cloneRow(r)
	}
	return out
}

func (o *Org) nextID(objectName string) string {
	o.nextSeq[objectName]++
	prefix := o.keyPrefixes[objectName]
	if prefix == "" {
		prefix = "XXX"
	}
	return fmt.Sprintf("%s%015d", prefix, o.nextSeq[objectName])
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Connection adapts an *Org into an orgconn.Connection. Queries support only
// the minimal SOQL shape the rest of the module ever generates:
// "SELECT f1, f2 FROM Object [WHERE ...] [LIMIT n]". The WHERE clause is
// matched with simple equality/IN substring checks, sufficient for testing
// the pipeline's own query-building, not for testing SOQL semantics.
type Connection struct {
	org         *Org
	instanceURL string
	accessToken string
	apiVersion  string
	pageSize    int

	files map[string][]byte // url -> content, for DownloadFile
}

// NewConnection returns a Connection backed by org.
func NewConnection(org *Org, instanceURL string) *Connection {
	return &Connection{
		org:         org,
		instanceURL: instanceURL,
		accessToken: "fake-token",
		apiVersion:  "v60.0",
		pageSize:    200,
		files:       make(map[string][]byte),
	}
}

// PutFile registers content to be returned by DownloadFile for url.
func (c *Connection) PutFile(url string, content []byte) {
	c.files[url] = content
}

func (c *Connection) InstanceURL() string { return c.instanceURL }
func (c *Connection) AccessToken() string { return c.accessToken }
func (c *Connection) APIVersion() string  { return c.apiVersion }

func (c *Connection) DescribeGlobal(ctx context.Context) ([]orgconn.GlobalEntry, error) {
	c.org.mu.Lock()
	defer c.org.mu.Unlock()
	out := make([]orgconn.GlobalEntry, len(c.org.globals))
	copy(out, c.org.globals)
	return out, nil
}

func (c *Connection) Describe(ctx context.Context, objectName string) (*orgconn.DescribeResult, error) {
	c.org.mu.Lock()
	defer c.org.mu.Unlock()
	d, ok := c.org.describe[objectName]
	if !ok {
		return nil, fmt.Errorf("fake: object %q not registered", objectName)
	}
	cp := *d
	return &cp, nil
}

// parsedQuery is the minimal shape this fake understands.
type parsedQuery struct {
	fields  []string
	object  string
	whereEq map[string]string
	whereIn map[string][]string
	limit   int
}

func parseQuery(soql string) (*parsedQuery, error) {
	upper := strings.ToUpper(soql)
	fromIdx := strings.Index(upper, " FROM ")
	if !strings.HasPrefix(upper, "SELECT ") || fromIdx < 0 {
		return nil, fmt.Errorf("fake: unsupported query shape: %s", soql)
	}
	fieldsPart := soql[len("SELECT ") : fromIdx]
	rest := strings.TrimSpace(soql[fromIdx+len(" FROM "):])

	pq := &parsedQuery{limit: -1, whereEq: map[string]string{}, whereIn: map[string][]string{}}
	for _, f := range strings.Split(fieldsPart, ",") {
		pq.fields = append(pq.fields, strings.TrimSpace(f))
	}

	whereIdx := indexCI(rest, " WHERE ")
	limitIdx := indexCI(rest, " LIMIT ")

	objectEnd := len(rest)
	if whereIdx >= 0 && whereIdx < objectEnd {
		objectEnd = whereIdx
	}
	if limitIdx >= 0 && limitIdx < objectEnd {
		objectEnd = limitIdx
	}
	pq.object = strings.TrimSpace(rest[:objectEnd])

	if whereIdx >= 0 {
		whereEnd := len(rest)
		if limitIdx > whereIdx {
			whereEnd = limitIdx
		}
		clause := strings.TrimSpace(rest[whereIdx+len(" WHERE "):whereEnd])
		for _, cond := range splitConditions(clause) {
			cond = strings.TrimSpace(cond)
			if inIdx := indexCI(cond, " IN "); inIdx >= 0 {
				key := strings.TrimSpace(cond[:inIdx])
				list := strings.TrimSpace(cond[inIdx+len(" IN "):])
				list = strings.TrimPrefix(list, "(")
				list = strings.TrimSuffix(list, ")")
				var values []string
				for _, v := range strings.Split(list, ",") {
					values = append(values, strings.Trim(strings.TrimSpace(v), "'"))
				}
				pq.whereIn[key] = values
				continue
			}
			parts := strings.SplitN(cond, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.Trim(strings.TrimSpace(parts[1]), "'")
			pq.whereEq[key] = val
		}
	}

	if limitIdx >= 0 {
		n, err := strconv.Atoi(strings.TrimSpace(rest[limitIdx+len(" LIMIT "):]))
		if err == nil {
			pq.limit = n
		}
	}
	return pq, nil
}

func indexCI(s, substr string) int {
	return strings.Index(strings.ToUpper(s), strings.ToUpper(substr))
}

// splitConditions splits a WHERE clause on " AND ", respecting parens so an
// IN (...) list's commas and any nested ANDs aren't mistaken for separators.
func splitConditions(clause string) []string {
	var out []string
	depth := 0
	start := 0
	upper := strings.ToUpper(clause)
	for i := 0; i < len(clause); i++ {
		switch clause[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && i+5 <= len(upper) && upper[i:i+5] == " AND " {
			out = append(out, clause[start:i])
			start = i + 5
			i += 4
		}
	}
	out = append(out, clause[start:])
	return out
}

func (c *Connection) evaluate(soql string) (*parsedQuery, []map[string]any, error) {
	pq, err := parseQuery(soql)
	if err != nil {
		return nil, nil, err
	}
	c.org.mu.Lock()
	rows := c.org.rows[pq.object]
	c.org.mu.Unlock()

	matched := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if rowMatches(r, pq.whereEq) && rowMatchesIn(r, pq.whereIn) {
			matched = append(matched, projectRow(r, pq.fields))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return fmt.Sprint(matched[i]["Id"]) < fmt.Sprint(matched[j]["Id"])
	})
	if pq.limit >= 0 && pq.limit < len(matched) {
		matched = matched[:pq.limit]
	}
	return pq, matched, nil
}

func (c *Connection) Query(ctx context.Context, soql string) (*orgconn.QueryResult, error) {
	_, matched, err := c.evaluate(soql)
	if err != nil {
		return nil, err
	}
	return c.paginate(matched, soql, 0), nil
}

// paginate slices all at offset, encoding the original soql and the next
// offset into the cursor so QueryMore can re-evaluate the same filter
// rather than losing the WHERE clause after the first page.
func (c *Connection) paginate(all []map[string]any, soql string, offset int) *orgconn.QueryResult {
	end := offset + c.pageSize
	done := end >= len(all)
	if done {
		end = len(all)
	}
	page := all[offset:end]
	var next string
	if !done {
		next = fmt.Sprintf("%d|%s", end, soql)
	}
	return &orgconn.QueryResult{
		Records:        page,
		Done:           done,
		NextRecordsURL: next,
		TotalSize:      len(all),
	}
}

func (c *Connection) QueryMore(ctx context.Context, nextRecordsURL string) (*orgconn.QueryResult, error) {
	parts := strings.SplitN(nextRecordsURL, "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("fake: malformed nextRecordsURL %q", nextRecordsURL)
	}
	offset, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("fake: malformed offset in nextRecordsURL: %w", err)
	}
	soql := parts[1]

	_, matched, err := c.evaluate(soql)
	if err != nil {
		return nil, err
	}
	return c.paginate(matched, soql, offset), nil
}

func rowMatches(row map[string]any, whereEq map[string]string) bool {
	for k, v := range whereEq {
		got, ok := row[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != v {
			return false
		}
	}
	return true
}

func rowMatchesIn(row map[string]any, whereIn map[string][]string) bool {
	for k, values := range whereIn {
		got, ok := row[k]
		if !ok {
			return false
		}
		gotStr := fmt.Sprint(got)
		found := false
		for _, v := range values {
			if v == gotStr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func projectRow(row map[string]any, fields []string) map[string]any {
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == "*") {
		return cloneRow(row)
	}
	out := make(map[string]any, len(fields)+1)
	out["Id"] = row["Id"]
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

func (c *Connection) Create(ctx context.Context, objectName string, records []map[string]any) ([]orgconn.WriteOutcome, error) {
	c.org.mu.Lock()
	defer c.org.mu.Unlock()

	if _, ok := c.org.describe[objectName]; !ok {
		return nil, fmt.Errorf("fake: object %q not registered", objectName)
	}
	out := make([]orgconn.WriteOutcome, len(records))
	for i, rec := range records {
		row := cloneRow(rec)
		row["Id"] = c.org.nextID(objectName)
		c.org.rows[objectName] = append(c.org.rows[objectName], row)
		out[i] = orgconn.WriteOutcome{ID: fmt.Sprint(row["Id"]), Success: true, Created: true}
	}
	return out, nil
}

func (c *Connection) Update(ctx context.Context, objectName string, records []map[string]any) ([]orgconn.WriteOutcome, error) {
	c.org.mu.Lock()
	defer c.org.mu.Unlock()

	out := make([]orgconn.WriteOutcome, len(records))
	for i, rec := range records {
		id := fmt.Sprint(rec["Id"])
		rows := c.org.rows[objectName]
		idx := indexByID(rows, id)
		if idx < 0 {
			out[i] = orgconn.WriteOutcome{ID: id, Success: false, Errors: []orgconn.WriteError{
				{StatusCode: "NOT_FOUND", Message: "record not found"},
			}}
			continue
		}
		for k, v := range rec {
			rows[idx][k] = v
		}
		out[i] = orgconn.WriteOutcome{ID: id, Success: true}
	}
	return out, nil
}

// Upsert matches against externalIDField rather than Id, creating rows with
// no match and updating rows with exactly one match. A record whose
// external-id value matches more than one existing row fails, mirroring a
// real org's "more than one record matches the external id" error.
func (c *Connection) Upsert(ctx context.Context, objectName string, records []map[string]any, externalIDField string) ([]orgconn.WriteOutcome, error) {
	c.org.mu.Lock()
	defer c.org.mu.Unlock()

	if _, ok := c.org.describe[objectName]; !ok {
		return nil, fmt.Errorf("fake: object %q not registered", objectName)
	}
	out := make([]orgconn.WriteOutcome, len(records))
	for i, rec := range records {
		extVal := fmt.Sprint(rec[externalIDField])
		rows := c.org.rows[objectName]
		matches := 0
		matchIdx := -1
		for idx, r := range rows {
			if fmt.Sprint(r[externalIDField]) == extVal {
				matches++
				matchIdx = idx
			}
		}
		switch {
		case matches > 1:
			out[i] = orgconn.WriteOutcome{Success: false, Errors: []orgconn.WriteError{
				{StatusCode: "MULTIPLE_MATCHES", Message: "more than one record matches the given external id"},
			}}
		case matches == 1:
			for k, v := range rec {
				rows[matchIdx][k] = v
			}
			out[i] = orgconn.WriteOutcome{ID: fmt.Sprint(rows[matchIdx]["Id"]), Success: true, Created: false}
		default:
			row := cloneRow(rec)
			row["Id"] = c.org.nextID(objectName)
			c.org.rows[objectName] = append(c.org.rows[objectName], row)
			out[i] = orgconn.WriteOutcome{ID: fmt.Sprint(row["Id"]), Success: true, Created: true}
		}
	}
	return out, nil
}

func indexByID(rows []map[string]any, id string) int {
	for i, r := range rows {
		if fmt.Sprint(r["Id"]) == id {
			return i
		}
	}
	return -1
}

func (c *Connection) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	content, ok := c.files[url]
	if !ok {
		return nil, fmt.Errorf("fake: no file registered for url %q", url)
	}
	return content, nil
}
