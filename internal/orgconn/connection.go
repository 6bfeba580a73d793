// Package orgconn defines the Connection boundary the pipeline core talks
// to. The connection itself — auth, SOQL execution, bulk APIs, paginated
// fetch, file download — is an external collaborator per spec.md §1 and §6;
// this package only pins down the interface and a couple of decorators
// (rate limiting, retry) that the core is allowed to wrap any concrete
// implementation in.
package orgconn

import "context"

// GlobalEntry is one row of a describeGlobal response.
type GlobalEntry struct {
	Name       string
	Label      string
	Queryable  bool
	Createable bool
	KeyPrefix  string
}

// FieldInfo is one field of a describe response, in the connection's own
// wire shape (internal/schema adapts this into model.FieldDescriptor).
type FieldInfo struct {
	Name             string
	Type             string
	Writable         bool
	Nullable         bool
	IsExternalID     bool
	ReferenceTargets []string
}

// ChildRelationship is one child relationship of a describe response.
type ChildRelationship struct {
	ChildObject string
	Field       string // name of the lookup field on the child; "" if unusable
	CascadeDelete bool
}

// DescribeResult is the full describe() response for one object.
type DescribeResult struct {
	Fields            []FieldInfo
	ChildRelationships []ChildRelationship
}

// QueryResult is one page of query results.
type QueryResult struct {
	Records        []map[string]any
	Done           bool
	NextRecordsURL string
	TotalSize      int
}

// WriteOutcome is one element of a create/update/upsert response array.
type WriteOutcome struct {
	ID      string
	Success bool
	Created bool // only meaningful for upsert
	Errors  []WriteError
}

// WriteError is one structured error attached to a WriteOutcome.
type WriteError struct {
	StatusCode string
	Message    string
	Fields     []string
}

// Connection is the external-collaborator boundary: given an authenticated
// org session, it performs describe/query/write/file operations. The core
// never constructs one directly — it is handed a Connection for the source
// org and one for the target org.
type Connection interface {
	DescribeGlobal(ctx context.Context) ([]GlobalEntry, error)
	Describe(ctx context.Context, objectName string) (*DescribeResult, error)
	Query(ctx context.Context, soql string) (*QueryResult, error)
	QueryMore(ctx context.Context, nextRecordsURL string) (*QueryResult, error)
	Create(ctx context.Context, objectName string, records []map[string]any) ([]WriteOutcome, error)
	Update(ctx context.Context, objectName string, records []map[string]any) ([]WriteOutcome, error)
	Upsert(ctx context.Context, objectName string, records []map[string]any, externalIDField string) ([]WriteOutcome, error)

	InstanceURL() string
	AccessToken() string
	APIVersion() string

	// DownloadFile fetches the binary content at a versioned-file URL
	// (authenticated GET, following redirects). Used only by the Stage 6
	// file sub-pipeline.
	DownloadFile(ctx context.Context, url string) ([]byte, error)
}
