package domain

import (
	"github.com/google/uuid"
)

// PropertyMapping binds a property key to the source column holding it and
// the type the source declares for that column.
type PropertyMapping struct {
	Column string
	Type   Type
}

// NodeTable declares how one input table maps onto nodes: which column holds
// the id, which labels hold for every row (implied), which labels are carried
// as per-row indicator columns (optional), and how property keys map to
// columns. Declarations are supplied once per alignment call and never
// mutated; the With* helpers copy.
type NodeTable struct {
	ID             uuid.UUID
	Name           string
	IDColumn       string
	ImpliedLabels  []string
	OptionalLabels map[string]string
	Properties     map[string]PropertyMapping
}

// NewNodeTable creates a node table declaration for the named input table.
func NewNodeTable(name, idColumn string) NodeTable {
	return NodeTable{
		ID:             uuid.New(),
		Name:           name,
		IDColumn:       idColumn,
		OptionalLabels: map[string]string{},
		Properties:     map[string]PropertyMapping{},
	}
}

// WithImpliedLabels returns a copy declaring labels that hold for every row.
func (t NodeTable) WithImpliedLabels(labels ...string) NodeTable {
	c := t.copy()
	c.ImpliedLabels = append(c.ImpliedLabels, labels...)
	return c
}

// WithOptionalLabel returns a copy declaring a label carried by a boolean
// indicator column.
func (t NodeTable) WithOptionalLabel(label, column string) NodeTable {
	c := t.copy()
	c.OptionalLabels[label] = column
	return c
}

// WithProperty returns a copy declaring a property key mapping.
func (t NodeTable) WithProperty(key, column string, typ Type) NodeTable {
	c := t.copy()
	c.Properties[key] = PropertyMapping{Column: column, Type: typ}
	return c
}

// HasLabel reports whether the declaration mentions the label at all.
func (t NodeTable) HasLabel(label string) bool {
	for _, l := range t.ImpliedLabels {
		if l == label {
			return true
		}
	}
	_, ok := t.OptionalLabels[label]
	return ok
}

// ImpliesLabel reports whether the label holds for every row of the table.
func (t NodeTable) ImpliesLabel(label string) bool {
	for _, l := range t.ImpliedLabels {
		if l == label {
			return true
		}
	}
	return false
}

func (t NodeTable) copy() NodeTable {
	c := t
	c.ImpliedLabels = append([]string(nil), t.ImpliedLabels...)
	c.OptionalLabels = make(map[string]string, len(t.OptionalLabels))
	for k, v := range t.OptionalLabels {
		c.OptionalLabels[k] = v
	}
	c.Properties = make(map[string]PropertyMapping, len(t.Properties))
	for k, v := range t.Properties {
		c.Properties[k] = v
	}
	return c
}

// RelationshipTable declares how one input table maps onto relationships.
// Source and target columns must reference node ids from the same graph;
// alignment treats that as a caller precondition and does not validate it.
type RelationshipTable struct {
	ID            uuid.UUID
	Name          string
	IDColumn      string
	SourceColumn  string
	TargetColumn  string
	ImpliedTypes  []string
	OptionalTypes map[string]string
	Properties    map[string]PropertyMapping
}

// NewRelationshipTable creates a relationship table declaration.
func NewRelationshipTable(name, idColumn, sourceColumn, targetColumn string) RelationshipTable {
	return RelationshipTable{
		ID:            uuid.New(),
		Name:          name,
		IDColumn:      idColumn,
		SourceColumn:  sourceColumn,
		TargetColumn:  targetColumn,
		OptionalTypes: map[string]string{},
		Properties:    map[string]PropertyMapping{},
	}
}

// WithImpliedTypes returns a copy declaring relationship types that hold for
// every row.
func (t RelationshipTable) WithImpliedTypes(types ...string) RelationshipTable {
	c := t.copy()
	c.ImpliedTypes = append(c.ImpliedTypes, types...)
	return c
}

// WithOptionalType returns a copy declaring a relationship type carried by a
// boolean indicator column.
func (t RelationshipTable) WithOptionalType(relType, column string) RelationshipTable {
	c := t.copy()
	c.OptionalTypes[relType] = column
	return c
}

// WithProperty returns a copy declaring a property key mapping.
func (t RelationshipTable) WithProperty(key, column string, typ Type) RelationshipTable {
	c := t.copy()
	c.Properties[key] = PropertyMapping{Column: column, Type: typ}
	return c
}

// HasType reports whether the declaration mentions the relationship type.
func (t RelationshipTable) HasType(relType string) bool {
	for _, rt := range t.ImpliedTypes {
		if rt == relType {
			return true
		}
	}
	_, ok := t.OptionalTypes[relType]
	return ok
}

// ImpliesType reports whether the type holds for every row of the table.
func (t RelationshipTable) ImpliesType(relType string) bool {
	for _, rt := range t.ImpliedTypes {
		if rt == relType {
			return true
		}
	}
	return false
}

func (t RelationshipTable) copy() RelationshipTable {
	c := t
	c.ImpliedTypes = append([]string(nil), t.ImpliedTypes...)
	c.OptionalTypes = make(map[string]string, len(t.OptionalTypes))
	for k, v := range t.OptionalTypes {
		c.OptionalTypes[k] = v
	}
	c.Properties = make(map[string]PropertyMapping, len(t.Properties))
	for k, v := range t.Properties {
		c.Properties[k] = v
	}
	return c
}
