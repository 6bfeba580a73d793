// Package schema discovers object schemas and child relationships from a
// Connection, adapting its wire shapes into internal/model's descriptor
// types and caching describe results for the lifetime of one run.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/orgconn"
)

// deniedChildObjects is the fixed deny-list of platform child objects that
// discoverChildren never surfaces: activities, feeds, content links,
// subscriptions, topic assignments, history-recent.
var deniedChildObjects = map[string]bool{
	"Task":                true,
	"Event":               true,
	"ActivityHistory":     true,
	"OpenActivity":        true,
	"FeedItem":            true,
	"FeedComment":         true,
	"ContentDocumentLink": true,
	"ContentVersion":      true,
	"EntitySubscription":  true,
	"TopicAssignment":     true,
	"RecentlyViewed":      true,
}

// deniedChildSuffixes excludes any child whose name ends with one of these.
var deniedChildSuffixes = []string{
	"__Feed", "__History", "__Share", "__ChangeEvent", "History", "Feed", "Share", "ChangeEvent",
}

// Inspector wraps a Connection with per-run describe caching, per spec.md
// §4.1's "describe results SHOULD be cached for the run" note.
type Inspector struct {
	conn orgconn.Connection

	mu           sync.Mutex
	globalCache  []model.GlobalDescriptor
	describeCache map[string]*model.ObjectDescriptor
}

// New returns an Inspector backed by conn.
func New(conn orgconn.Connection) *Inspector {
	return &Inspector{
		conn:          conn,
		describeCache: make(map[string]*model.ObjectDescriptor),
	}
}

func (i *Inspector) global(ctx context.Context) ([]model.GlobalDescriptor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.globalCache != nil {
		return i.globalCache, nil
	}
	entries, err := i.conn.DescribeGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("describeGlobal: %w", err)
	}
	out := make([]model.GlobalDescriptor, len(entries))
	for idx, e := range entries {
		out[idx] = model.GlobalDescriptor{
			Name: e.Name, Label: e.Label, Queryable: e.Queryable, Createable: e.Createable, KeyPrefix: e.KeyPrefix,
		}
	}
	i.globalCache = out
	return out, nil
}

// ListInsertableObjects returns objects both queryable and createable,
// sorted by label.
func (i *Inspector) ListInsertableObjects(ctx context.Context) ([]model.GlobalDescriptor, error) {
	all, err := i.global(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.GlobalDescriptor, 0, len(all))
	for _, g := range all {
		if g.Queryable && g.Createable {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out, nil
}

// insertableNames is the set of object names that are both queryable and
// createable, used by DiscoverChildren's insertable-list check.
func (i *Inspector) insertableNames(ctx context.Context) (map[string]bool, error) {
	all, err := i.global(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(all))
	for _, g := range all {
		if g.Queryable && g.Createable {
			out[g.Name] = true
		}
	}
	return out, nil
}

// DescribeObject returns objectName's full field and child-relationship
// schema, caching the result for the lifetime of the Inspector.
func (i *Inspector) DescribeObject(ctx context.Context, objectName string) (*model.ObjectDescriptor, error) {
	i.mu.Lock()
	if cached, ok := i.describeCache[objectName]; ok {
		i.mu.Unlock()
		return cached, nil
	}
	i.mu.Unlock()

	res, err := i.conn.Describe(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", objectName, err)
	}

	desc := &model.ObjectDescriptor{Name: objectName, Label: objectName}
	for _, f := range res.Fields {
		desc.Fields = append(desc.Fields, model.FieldDescriptor{
			Name:             f.Name,
			Type:             model.FieldType(f.Type),
			Writable:         f.Writable,
			Nullable:         f.Nullable,
			IsExternalID:     f.IsExternalID,
			ReferenceTargets: f.ReferenceTargets,
		})
	}
	for _, c := range res.ChildRelationships {
		desc.Children = append(desc.Children, model.ChildRelationshipDescriptor{
			ChildObject:       c.ChildObject,
			ParentLookupField: c.Field,
			CascadeDelete:     c.CascadeDelete,
		})
	}

	i.mu.Lock()
	i.describeCache[objectName] = desc
	i.mu.Unlock()
	return desc, nil
}

func hasDeniedSuffix(name string) bool {
	for _, suf := range deniedChildSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// DiscoverChildren enumerates objectName's child relationships, excluding
// the fixed deny-list, suffix-denied names, objects absent from the
// insertable global list, and relationships with no usable lookup field.
// Results are sorted by child object name.
func (i *Inspector) DiscoverChildren(ctx context.Context, objectName string) ([]model.ChildRelationshipDescriptor, error) {
	desc, err := i.DescribeObject(ctx, objectName)
	if err != nil {
		return nil, err
	}
	insertable, err := i.insertableNames(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.ChildRelationshipDescriptor, 0, len(desc.Children))
	for _, c := range desc.Children {
		if deniedChildObjects[c.ChildObject] {
			continue
		}
		if hasDeniedSuffix(c.ChildObject) {
			continue
		}
		if !insertable[c.ChildObject] {
			continue
		}
		if c.ParentLookupField == "" {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ChildObject < out[b].ChildObject })
	return out, nil
}

// GrandchildCandidate is one discovered grandchild relationship, carrying
// the name of the child it was discovered under (so the caller can build a
// ParentLookupField chain without a second describe round-trip).
type GrandchildCandidate struct {
	ParentChildObject string
	Relationship      model.ChildRelationshipDescriptor
}

// DiscoverGrandchildren applies DiscoverChildren to each name in childNames,
// skipping any grandchild whose object is already in scope (the root or one
// of the declared children) — this is what breaks relationship cycles.
func (i *Inspector) DiscoverGrandchildren(ctx context.Context, childNames []string, rootName string) ([]GrandchildCandidate, error) {
	inScope := make(map[string]bool, len(childNames)+1)
	inScope[rootName] = true
	for _, c := range childNames {
		inScope[c] = true
	}

	var out []GrandchildCandidate
	for _, childName := range childNames {
		grandchildren, err := i.DiscoverChildren(ctx, childName)
		if err != nil {
			return nil, err
		}
		for _, g := range grandchildren {
			if inScope[g.ChildObject] {
				continue
			}
			out = append(out, GrandchildCandidate{ParentChildObject: childName, Relationship: g})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].ParentChildObject != out[b].ParentChildObject {
			return out[a].ParentChildObject < out[b].ParentChildObject
		}
		return out[a].Relationship.ChildObject < out[b].Relationship.ChildObject
	})
	return out, nil
}
