package cli

import (
	"context"
	"fmt"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/schema"
)

// BuildPlan resolves Flags into a fully-formed SeedPlan. Schema discovery
// (spec.md §1: "discovers relationships at run time") supplies each
// requested child/grandchild's ParentLookupField — the CLI only ever names
// objects, never lookup fields, matching the flag surface in spec.md §6.
func BuildPlan(ctx context.Context, sourceInsp *schema.Inspector, f Flags) (*model.SeedPlan, error) {
	count, err := ParseCount(f.Count)
	if err != nil {
		return nil, err
	}

	children, err := resolveChildren(ctx, sourceInsp, f.Object, f.Children, f.Grandchildren)
	if err != nil {
		return nil, err
	}

	plan := &model.SeedPlan{
		RootObject:    f.Object,
		Children:      children,
		IncludeTasks:  f.IncludeTasks,
		IncludeEvents: f.IncludeEvents,
		IncludeFiles:  f.IncludeFiles,
		DryRun:        f.DryRun,
		RecordCount:   count,
		Where:         f.Where,
	}
	if f.UpsertField != "" {
		plan.RootExternalID = f.UpsertField
	}
	return plan, nil
}

func resolveChildren(ctx context.Context, sourceInsp *schema.Inspector, rootObject string, requestedChildren, requestedGrandchildren []string) ([]model.ChildSpec, error) {
	if len(requestedChildren) == 0 {
		return nil, nil
	}

	discoveredChildren, err := sourceInsp.DiscoverChildren(ctx, rootObject)
	if err != nil {
		return nil, fmt.Errorf("discover children of %s: %w", rootObject, err)
	}
	byName := make(map[string]model.ChildRelationshipDescriptor, len(discoveredChildren))
	for _, c := range discoveredChildren {
		byName[c.ChildObject] = c
	}

	var childNames []string
	specs := make([]model.ChildSpec, 0, len(requestedChildren))
	for _, name := range requestedChildren {
		rel, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%s is not a discoverable child of %s (not queryable+createable, denied, or has no usable lookup field)", name, rootObject)
		}
		specs = append(specs, model.ChildSpec{ObjectName: rel.ChildObject, ParentLookupField: rel.ParentLookupField})
		childNames = append(childNames, rel.ChildObject)
	}

	if len(requestedGrandchildren) == 0 {
		return specs, nil
	}

	candidates, err := sourceInsp.DiscoverGrandchildren(ctx, childNames, rootObject)
	if err != nil {
		return nil, fmt.Errorf("discover grandchildren: %w", err)
	}
	byGrandchildName := make(map[string][]schema.GrandchildCandidate, len(candidates))
	for _, c := range candidates {
		byGrandchildName[c.Relationship.ChildObject] = append(byGrandchildName[c.Relationship.ChildObject], c)
	}

	specByName := make(map[string]*model.ChildSpec, len(specs))
	for i := range specs {
		specByName[specs[i].ObjectName] = &specs[i]
	}

	for _, name := range requestedGrandchildren {
		matches, ok := byGrandchildName[name]
		if !ok || len(matches) == 0 {
			return nil, fmt.Errorf("%s is not a discoverable grandchild of any requested child of %s", name, rootObject)
		}
		for _, m := range matches {
			parent := specByName[m.ParentChildObject]
			if parent == nil {
				continue
			}
			parent.Grandchildren = append(parent.Grandchildren, model.GrandchildSpec{
				ObjectName:        m.Relationship.ChildObject,
				ParentLookupField: m.Relationship.ParentLookupField,
			})
		}
	}

	return specs, nil
}
