package schema_test

import (
	"context"
	"testing"

	"github.com/johnwards/orgseed/internal/orgconn"
	"github.com/johnwards/orgseed/internal/orgconn/fake"
	"github.com/johnwards/orgseed/internal/schema"
)

func setupInspector(t *testing.T) (*schema.Inspector, *fake.Org) {
	t.Helper()
	org := fake.NewOrg()
	org.RegisterObject("Account", "001", true, true, orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id", Type: "id", Writable: false},
			{Name: "Name", Type: "string", Writable: true, Nullable: true},
			{Name: "ParentId", Type: "reference", Writable: true, Nullable: true, ReferenceTargets: []string{"Account"}},
		},
		ChildRelationships: []orgconn.ChildRelationship{
			{ChildObject: "Contact", Field: "AccountId"},
			{ChildObject: "Task", Field: "WhatId"},
			{ChildObject: "Account__Share", Field: "ParentId"},
			{ChildObject: "NotCreateable__c", Field: "AccountId"},
			{ChildObject: "Opportunity", Field: ""},
		},
	})
	org.RegisterObject("Contact", "003", true, true, orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id", Type: "id"},
			{Name: "LastName", Type: "string", Writable: true},
			{Name: "AccountId", Type: "reference", Writable: true, ReferenceTargets: []string{"Account"}},
		},
		ChildRelationships: []orgconn.ChildRelationship{
			{ChildObject: "Account", Field: "Id"}, // already in scope as root
			{ChildObject: "Case", Field: "ContactId"},
		},
	})
	org.RegisterObject("Case", "500", true, true, orgconn.DescribeResult{})
	org.RegisterObject("NotCreateable__c", "a00", true, false, orgconn.DescribeResult{})
	org.RegisterObject("Opportunity", "006", true, true, orgconn.DescribeResult{})

	conn := fake.NewConnection(org, "https://example.my.salesforce.com")
	return schema.New(conn), org
}

func TestListInsertableObjects(t *testing.T) {
	insp, _ := setupInspector(t)
	objs, err := insp.ListInsertableObjects(context.Background())
	if err != nil {
		t.Fatalf("ListInsertableObjects: %v", err)
	}
	if len(objs) != 4 { // NotCreateable__c excluded
		t.Fatalf("ListInsertableObjects returned %d objects, want 4: %+v", len(objs), objs)
	}
	for i := 1; i < len(objs); i++ {
		if objs[i-1].Label > objs[i].Label {
			t.Fatalf("ListInsertableObjects not sorted by label: %+v", objs)
		}
	}
}

func TestDiscoverChildrenAppliesAllFilters(t *testing.T) {
	insp, _ := setupInspector(t)
	children, err := insp.DiscoverChildren(context.Background(), "Account")
	if err != nil {
		t.Fatalf("DiscoverChildren: %v", err)
	}
	if len(children) != 1 || children[0].ChildObject != "Contact" {
		t.Fatalf("DiscoverChildren(Account) = %+v; want only Contact", children)
	}
}

func TestDiscoverGrandchildrenBreaksCycles(t *testing.T) {
	insp, _ := setupInspector(t)
	grandchildren, err := insp.DiscoverGrandchildren(context.Background(), []string{"Contact"}, "Account")
	if err != nil {
		t.Fatalf("DiscoverGrandchildren: %v", err)
	}
	if len(grandchildren) != 1 || grandchildren[0].Relationship.ChildObject != "Case" {
		t.Fatalf("DiscoverGrandchildren = %+v; want only Case (Account excluded as root)", grandchildren)
	}
}

func TestDescribeObjectIsCached(t *testing.T) {
	insp, org := setupInspector(t)
	ctx := context.Background()
	first, err := insp.DescribeObject(ctx, "Account")
	if err != nil {
		t.Fatalf("DescribeObject: %v", err)
	}

	org.RegisterObject("Account", "001", true, true, orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{{Name: "Extra", Type: "string", Writable: true}},
	})

	second, err := insp.DescribeObject(ctx, "Account")
	if err != nil {
		t.Fatalf("DescribeObject second call: %v", err)
	}
	if len(second.Fields) != len(first.Fields) {
		t.Fatalf("DescribeObject result changed after cache should have been hit: %+v vs %+v", first, second)
	}
}
