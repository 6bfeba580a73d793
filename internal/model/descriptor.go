package model

// FieldType is the semantic type of a field, as reported by schema describe
// calls. It drives both reference classification and the compound-field
// exclusion rule in the record preparer.
type FieldType string

// Field type constants recognized by the preparer and classifier. Any value
// not in this list is treated as an opaque scalar and copied verbatim.
const (
	FieldTypeString    FieldType = "string"
	FieldTypeReference FieldType = "reference"
	FieldTypeAddress   FieldType = "address"
	FieldTypeLocation  FieldType = "location"
)

// FieldDescriptor describes one field on an ObjectDescriptor.
type FieldDescriptor struct {
	Name             string
	Type             FieldType
	Writable         bool
	Nullable         bool
	IsExternalID     bool
	ReferenceTargets []string // ordered; len > 1 means polymorphic
}

// ChildRelationshipDescriptor describes a child object related to a parent
// via a lookup field on the child.
type ChildRelationshipDescriptor struct {
	ChildObject      string
	ParentLookupField string
	CascadeDelete    bool
}

// ObjectDescriptor is an object type's schema as discovered from a
// Connection: its fields and its child relationships.
type ObjectDescriptor struct {
	Name     string
	Label    string
	Fields   []FieldDescriptor
	Children []ChildRelationshipDescriptor
}

// FieldByName returns the field named name and whether it was found.
func (d *ObjectDescriptor) FieldByName(name string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// WritableFieldNames returns the set of field names with Writable == true.
func (d *ObjectDescriptor) WritableFieldNames() map[string]bool {
	out := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Writable {
			out[f.Name] = true
		}
	}
	return out
}

// GlobalDescriptor is a summary entry from describeGlobal, used to decide
// whether an object is queryable/createable and to map ids to object types
// via their key prefix.
type GlobalDescriptor struct {
	Name       string
	Label      string
	Queryable  bool
	Createable bool
	KeyPrefix  string
}
