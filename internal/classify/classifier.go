// Package classify buckets an object's reference fields into the
// categories the Record Preparer and Pipeline Driver act on. See spec.md
// §4.3.
package classify

import "github.com/johnwards/orgseed/internal/model"

// Bucket is the category a reference field is classified into.
type Bucket int

const (
	// SystemReference fields are stripped: they point at platform objects
	// outside the seed's scope, or at an ambiguous polymorphic set.
	SystemReference Bucket = iota
	// SelfReference fields point back at the root object (directly, or as
	// part of a polymorphic target list). Carried over to the post-insert
	// self-ref pass rather than written on initial insert.
	SelfReference
	// InScopeReference fields point at an object the Registry already has
	// (or will have) entries for.
	InScopeReference
	// DataDependency fields point at exactly one non-system object outside
	// the declared scope; the target is shallow-seeded before the referrer
	// is written.
	DataDependency
)

func (b Bucket) String() string {
	switch b {
	case SystemReference:
		return "SystemReference"
	case SelfReference:
		return "SelfReference"
	case InScopeReference:
		return "InScopeReference"
	case DataDependency:
		return "DataDependency"
	default:
		return "Unknown"
	}
}

// Classification is one reference field's bucket and, for DataDependency,
// the single non-system target object.
type Classification struct {
	Field  string
	Bucket Bucket
	Target string // set only when Bucket == DataDependency
}

// systemLookupObjects is the fixed deny-list of platform objects a
// reference field pointing only at these is stripped rather than remapped.
var systemLookupObjects = map[string]bool{
	// platform identity
	"User": true, "Group": true, "Profile": true, "Role": true,
	"PermissionSet": true, "PermissionSetGroup": true, "ConnectedApplication": true, "Organization": true,
	// metadata / config
	"RecordType": true, "BusinessProcess": true, "ApexClass": true, "ApexTrigger": true,
	"CustomPermission": true, "EmailTemplate": true, "Folder": true, "ListView": true, "Layout": true,
	// entitlements
	"BusinessHours": true, "Entitlement": true, "EntitlementTemplate": true,
	"Milestone": true, "MilestoneType": true, "SlaProcess": true,
	// territory, multi-currency, misc platform
	"Division": true, "QueueSobject": true, "Calendar": true, "CollaborationGroup": true,
	"Network": true, "Site": true, "Community": true, "BrandTemplate": true, "DandBCompany": true,
	"PartnerRole": true, "DuplicateRecordSet": true, "DuplicateRecordItem": true, "DuplicateRecordRule": true,
	"MatchingRule": true, "Period": true, "FiscalYearSettings": true,
}

// IsSystemLookupObject reports whether name is in the fixed deny-list.
func IsSystemLookupObject(name string) bool {
	return systemLookupObjects[name]
}

func nonSystemTargets(targets []string) []string {
	var out []string
	for _, t := range targets {
		if !systemLookupObjects[t] {
			out = append(out, t)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func allSystem(targets []string) bool {
	for _, t := range targets {
		if !systemLookupObjects[t] {
			return false
		}
	}
	return true
}

// ClassifyRoot applies the root-mode rules (spec.md §4.3, rules 1-5) to
// every writable reference field on desc.
func ClassifyRoot(desc *model.ObjectDescriptor, rootObject string) []Classification {
	var out []Classification
	for _, f := range desc.Fields {
		if !f.Writable || f.Type != model.FieldTypeReference {
			continue
		}
		out = append(out, classifyRootField(f, rootObject))
	}
	return out
}

func classifyRootField(f model.FieldDescriptor, rootObject string) Classification {
	targets := f.ReferenceTargets

	// Rule 1: pure self-reference.
	if len(targets) == 1 && targets[0] == rootObject {
		return Classification{Field: f.Name, Bucket: SelfReference}
	}
	// Rule 2: every target is in the system deny-list.
	if len(targets) > 0 && allSystem(targets) {
		return Classification{Field: f.Name, Bucket: SystemReference}
	}
	// Rule 3: polymorphic set that includes the root object.
	if containsString(targets, rootObject) {
		return Classification{Field: f.Name, Bucket: SelfReference}
	}
	// Rule 4: exactly one non-system target.
	nonSystem := nonSystemTargets(targets)
	if len(nonSystem) == 1 {
		return Classification{Field: f.Name, Bucket: DataDependency, Target: nonSystem[0]}
	}
	// Rule 5: polymorphic across multiple non-system targets — strip.
	return Classification{Field: f.Name, Bucket: SystemReference}
}

// RegistryProbe reports whether object currently has Registry entries, used
// by ClassifyNonRoot to decide InScopeReference without importing the
// registry package directly (keeps classify decoupled from registry's
// concurrency machinery).
type RegistryProbe func(object string) bool

// ClassifyNonRoot applies the simpler non-root rule (spec.md §4.3): a
// reference field is InScopeReference if any of its targets currently has a
// Registry entry, else SystemReference (stripped).
func ClassifyNonRoot(desc *model.ObjectDescriptor, hasEntries RegistryProbe) []Classification {
	var out []Classification
	for _, f := range desc.Fields {
		if !f.Writable || f.Type != model.FieldTypeReference {
			continue
		}
		out = append(out, classifyNonRootField(f, hasEntries))
	}
	return out
}

func classifyNonRootField(f model.FieldDescriptor, hasEntries RegistryProbe) Classification {
	for _, t := range f.ReferenceTargets {
		if hasEntries(t) {
			return Classification{Field: f.Name, Bucket: InScopeReference}
		}
	}
	return Classification{Field: f.Name, Bucket: SystemReference}
}

// ByField indexes a Classification slice by field name, for the preparer's
// per-field lookups.
func ByField(cs []Classification) map[string]Classification {
	out := make(map[string]Classification, len(cs))
	for _, c := range cs {
		out[c.Field] = c
	}
	return out
}
