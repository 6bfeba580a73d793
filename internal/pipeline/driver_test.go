package pipeline_test

import (
	"context"
	"testing"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/orgconn"
	"github.com/johnwards/orgseed/internal/orgconn/fake"
	"github.com/johnwards/orgseed/internal/pipeline"
)

func accountDescribe() orgconn.DescribeResult {
	return orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id"},
			{Name: "Name", Type: "string", Writable: true, Nullable: true},
			{Name: "ParentId", Type: "reference", Writable: true, Nullable: true, ReferenceTargets: []string{"Account"}},
		},
	}
}

func TestRootOnlyPlainInsert(t *testing.T) {
	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	sourceOrg.SeedRow("Account", map[string]any{"Name": "Globex", "ParentId": nil})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	plan := &model.SeedPlan{RootObject: "Account", RecordCount: model.AllRecords}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, state, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != pipeline.Done {
		t.Fatalf("state = %v, want Done", state)
	}

	counter := results.Counter("Account")
	if counter.Queried != 2 || counter.Inserted != 2 || counter.Updated != 0 || counter.Failed != 0 || counter.Skipped != 0 {
		t.Fatalf("Account counters = %+v, want {Queried:2 Inserted:2}", counter)
	}

	if len(targetOrg.Rows("Account")) != 2 {
		t.Fatalf("target Account rows = %d, want 2", len(targetOrg.Rows("Account")))
	}
}

func TestSelfReferenceResolvedPostInsert(t *testing.T) {
	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	parent := sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	parentID := parent["Id"].(string)
	sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme Child", "ParentId": parentID})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	plan := &model.SeedPlan{RootObject: "Account", RecordCount: model.AllRecords}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, state, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != pipeline.Done {
		t.Fatalf("state = %v, want Done", state)
	}

	counter := results.Counter("Account")
	if counter.Queried != 2 || counter.Inserted != 2 || counter.Failed != 0 {
		t.Fatalf("Account counters = %+v, want {Queried:2 Inserted:2 Failed:0}", counter)
	}

	var childRow map[string]any
	for _, r := range targetOrg.Rows("Account") {
		if r["Name"] == "Acme Child" {
			childRow = r
		}
	}
	if childRow == nil {
		t.Fatalf("target Account rows missing the child: %+v", targetOrg.Rows("Account"))
	}
	if childRow["ParentId"] == nil || childRow["ParentId"] == "" {
		t.Fatalf("child's ParentId was not resolved via the post-insert self-ref update: %+v", childRow)
	}
}

func TestRequiredReferenceSkip(t *testing.T) {
	contactDescribe := orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id"},
			{Name: "LastName", Type: "string", Writable: true},
			{Name: "AccountId", Type: "reference", Writable: true, Nullable: false, ReferenceTargets: []string{"Account"}},
			{Name: "PartnerAccountId", Type: "reference", Writable: true, Nullable: false, ReferenceTargets: []string{"Account"}},
		},
	}

	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	sourceOrg.RegisterObject("Contact", "003", true, true, contactDescribe)
	account := sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	accountID := account["Id"].(string)
	// The Contact hangs off the seeded Account, so the Stage 2 query returns
	// it; its required PartnerAccountId points at an Account with no Registry entry.
	sourceOrg.SeedRow("Contact", map[string]any{"LastName": "Orphan", "AccountId": accountID, "PartnerAccountId": "001Z"})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetOrg.RegisterObject("Contact", "003", true, true, contactDescribe)
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	plan := &model.SeedPlan{
		RootObject:  "Account",
		RecordCount: model.AllRecords,
		Children: []model.ChildSpec{
			{ObjectName: "Contact", ParentLookupField: "AccountId"},
		},
	}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, _, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	counter := results.Counter("Contact")
	if counter.Skipped != 1 {
		t.Fatalf("Contact.Skipped = %d, want 1", counter.Skipped)
	}
	found := false
	for _, e := range results.Errors {
		if e.Object == "Contact" && e.Stage == "remap" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a remap-stage error for the orphaned Contact, got %+v", results.Errors)
	}
}

func TestChildInScopeRemap(t *testing.T) {
	contactDescribe := orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id"},
			{Name: "LastName", Type: "string", Writable: true},
			{Name: "AccountId", Type: "reference", Writable: true, Nullable: false, ReferenceTargets: []string{"Account"}},
		},
	}

	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	sourceOrg.RegisterObject("Contact", "003", true, true, contactDescribe)
	account := sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	accountID := account["Id"].(string)
	sourceOrg.SeedRow("Contact", map[string]any{"LastName": "Runner", "AccountId": accountID})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetOrg.RegisterObject("Contact", "003", true, true, contactDescribe)
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	plan := &model.SeedPlan{
		RootObject:  "Account",
		RecordCount: model.AllRecords,
		Children: []model.ChildSpec{
			{ObjectName: "Contact", ParentLookupField: "AccountId"},
		},
	}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, state, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != pipeline.Done {
		t.Fatalf("state = %v, want Done", state)
	}

	counter := results.Counter("Contact")
	if counter.Inserted != 1 || counter.Skipped != 0 || counter.Failed != 0 {
		t.Fatalf("Contact counters = %+v, want {Inserted:1 Skipped:0 Failed:0}", counter)
	}

	targetAccounts := targetOrg.Rows("Account")
	if len(targetAccounts) != 1 {
		t.Fatalf("target Account rows = %d, want 1", len(targetAccounts))
	}
	targetAccountID := targetAccounts[0]["Id"]

	targetContacts := targetOrg.Rows("Contact")
	if len(targetContacts) != 1 {
		t.Fatalf("target Contact rows = %d, want 1", len(targetContacts))
	}
	if targetContacts[0]["AccountId"] != targetAccountID {
		t.Fatalf("Contact.AccountId = %v, want remapped target id %v", targetContacts[0]["AccountId"], targetAccountID)
	}
}

func TestPolymorphicActivityRemap(t *testing.T) {
	taskDescribe := orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id"},
			{Name: "Subject", Type: "string", Writable: true, Nullable: true},
			{Name: "WhatId", Type: "reference", Writable: true, Nullable: true, ReferenceTargets: []string{"Account"}},
			{Name: "WhoId", Type: "reference", Writable: true, Nullable: true, ReferenceTargets: []string{"Contact"}},
		},
	}

	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	sourceOrg.RegisterObject("Task", "00T", true, true, taskDescribe)
	account := sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	accountID := account["Id"].(string)
	const unmappedContactID = "003Z00000000000AAA"
	sourceOrg.SeedRow("Task", map[string]any{"Subject": "Follow up", "WhatId": accountID, "WhoId": unmappedContactID})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetOrg.RegisterObject("Task", "00T", true, true, taskDescribe)
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	plan := &model.SeedPlan{
		RootObject:   "Account",
		RecordCount:  model.AllRecords,
		IncludeTasks: true,
	}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, state, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != pipeline.Done {
		t.Fatalf("state = %v, want Done", state)
	}

	counter := results.Counter("Task")
	if counter.Queried != 1 || counter.Inserted != 1 || counter.Failed != 0 {
		t.Fatalf("Task counters = %+v, want {Queried:1 Inserted:1 Failed:0}", counter)
	}

	targetAccounts := targetOrg.Rows("Account")
	if len(targetAccounts) != 1 {
		t.Fatalf("target Account rows = %d, want 1", len(targetAccounts))
	}
	targetAccountID := targetAccounts[0]["Id"]

	targetTasks := targetOrg.Rows("Task")
	if len(targetTasks) != 1 {
		t.Fatalf("target Task rows = %d, want 1", len(targetTasks))
	}
	if targetTasks[0]["WhatId"] != targetAccountID {
		t.Fatalf("Task.WhatId = %v, want remapped target account id %v", targetTasks[0]["WhatId"], targetAccountID)
	}
	if targetTasks[0]["WhoId"] != nil {
		t.Fatalf("Task.WhoId = %v, want nil (unmapped Contact reference stripped)", targetTasks[0]["WhoId"])
	}
}

func TestCancellationMidPipeline(t *testing.T) {
	contactDescribe := orgconn.DescribeResult{
		Fields: []orgconn.FieldInfo{
			{Name: "Id"},
			{Name: "LastName", Type: "string", Writable: true},
			{Name: "AccountId", Type: "reference", Writable: true, Nullable: false, ReferenceTargets: []string{"Account"}},
		},
	}

	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	sourceOrg.RegisterObject("Contact", "003", true, true, contactDescribe)
	account := sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	accountID := account["Id"].(string)
	sourceOrg.SeedRow("Contact", map[string]any{"LastName": "Runner", "AccountId": accountID})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetOrg.RegisterObject("Contact", "003", true, true, contactDescribe)
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	// Fires false for the two Aborted() checks that straddle Stage 2 (post-Stage1,
	// pre-child), then true for the check immediately after the children loop
	// completes — so Stage 2 finishes but Stage 3 (grandchildren) never starts.
	calls := 0
	plan := &model.SeedPlan{
		RootObject:  "Account",
		RecordCount: model.AllRecords,
		Children: []model.ChildSpec{
			{ObjectName: "Contact", ParentLookupField: "AccountId"},
		},
		ShouldAbort: func() bool {
			calls++
			return calls > 2
		},
	}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, state, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != pipeline.PartialDone {
		t.Fatalf("state = %v, want PartialDone", state)
	}

	if !results.ChildrenRun {
		t.Fatalf("ChildrenRun = false, want true (Stage 2 should have completed)")
	}
	if results.GrandchildrenRun {
		t.Fatalf("GrandchildrenRun = true, want false (cancellation should fire before Stage 3)")
	}
	if results.TasksRun || results.EventsRun || results.FilesRun {
		t.Fatalf("TasksRun/EventsRun/FilesRun = %v/%v/%v, want all false", results.TasksRun, results.EventsRun, results.FilesRun)
	}

	if counter := results.Counter("Account"); counter.Inserted != 1 {
		t.Fatalf("Account counters = %+v, want Inserted:1", counter)
	}
	if counter := results.Counter("Contact"); counter.Inserted != 1 {
		t.Fatalf("Contact counters = %+v, want Inserted:1", counter)
	}
}

func TestDryRunPurity(t *testing.T) {
	sourceOrg := fake.NewOrg()
	sourceOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	sourceOrg.SeedRow("Account", map[string]any{"Name": "Acme", "ParentId": nil})
	sourceOrg.SeedRow("Account", map[string]any{"Name": "Globex", "ParentId": nil})
	sourceConn := fake.NewConnection(sourceOrg, "https://source.my.salesforce.com")

	targetOrg := fake.NewOrg()
	targetOrg.RegisterObject("Account", "001", true, true, accountDescribe())
	targetConn := fake.NewConnection(targetOrg, "https://target.my.salesforce.com")

	plan := &model.SeedPlan{RootObject: "Account", RecordCount: model.AllRecords, DryRun: true}
	driver := pipeline.New(sourceConn, targetConn, pipeline.NopLogger{})

	results, _, err := driver.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	counter := results.Counter("Account")
	if counter.Inserted != counter.Queried || counter.Failed != 0 || counter.Updated != 0 {
		t.Fatalf("dry-run counters = %+v, want Inserted == Queried, Failed:0, Updated:0", counter)
	}
	if len(targetOrg.Rows("Account")) != 0 {
		t.Fatalf("dry-run must make zero writes, target has %d rows", len(targetOrg.Rows("Account")))
	}
}
