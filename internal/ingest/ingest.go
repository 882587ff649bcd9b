// Package ingest loads graph declaration documents: YAML files describing
// entity tables, their id/label/type/property mappings, and inline rows. It
// exists for the inspection tool and for test fixtures; connecting to real
// storage backends is a collaborator concern, not handled here.
package ingest

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slategraph/slate/internal/align"
	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/table"
)

// Document is the top-level YAML shape.
type Document struct {
	Graph         string        `yaml:"graph"`
	Nodes         []NodeDoc     `yaml:"nodes"`
	Relationships []RelationDoc `yaml:"relationships"`
}

// NodeDoc declares one node table with inline rows.
type NodeDoc struct {
	Name           string                 `yaml:"name"`
	IDColumn       string                 `yaml:"id_column"`
	ImpliedLabels  []string               `yaml:"implied_labels"`
	OptionalLabels map[string]string      `yaml:"optional_labels"`
	Properties     map[string]PropertyDoc `yaml:"properties"`
	Rows           []map[string]any       `yaml:"rows"`
}

// RelationDoc declares one relationship table with inline rows.
type RelationDoc struct {
	Name          string                 `yaml:"name"`
	IDColumn      string                 `yaml:"id_column"`
	SourceColumn  string                 `yaml:"source_column"`
	TargetColumn  string                 `yaml:"target_column"`
	ImpliedTypes  []string               `yaml:"implied_types"`
	OptionalTypes map[string]string      `yaml:"optional_types"`
	Properties    map[string]PropertyDoc `yaml:"properties"`
	Rows          []map[string]any       `yaml:"rows"`
}

// PropertyDoc maps one property key to a column and declared type.
type PropertyDoc struct {
	Column string `yaml:"column"`
	Type   string `yaml:"type"`
}

// LoadFile reads and materializes a graph declaration document.
func LoadFile(path string) ([]align.NodeInput, []align.RelationshipInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read graph file: %w", err)
	}
	return Load(raw)
}

// Load materializes a graph declaration document into alignment inputs.
func Load(raw []byte) ([]align.NodeInput, []align.RelationshipInput, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse graph document: %w", err)
	}

	nodes := make([]align.NodeInput, 0, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		input, err := materializeNode(nd)
		if err != nil {
			return nil, nil, fmt.Errorf("node table %q: %w", nd.Name, err)
		}
		nodes = append(nodes, input)
	}

	rels := make([]align.RelationshipInput, 0, len(doc.Relationships))
	for _, rd := range doc.Relationships {
		input, err := materializeRelationship(rd)
		if err != nil {
			return nil, nil, fmt.Errorf("relationship table %q: %w", rd.Name, err)
		}
		rels = append(rels, input)
	}
	return nodes, rels, nil
}

func materializeNode(doc NodeDoc) (align.NodeInput, error) {
	decl := domain.NewNodeTable(doc.Name, doc.IDColumn).WithImpliedLabels(doc.ImpliedLabels...)
	for label, column := range doc.OptionalLabels {
		decl = decl.WithOptionalLabel(label, column)
	}
	columnTypes := map[string]domain.Type{doc.IDColumn: domain.IntegerType()}
	for _, column := range doc.OptionalLabels {
		columnTypes[column] = domain.BooleanType()
	}
	for key, prop := range doc.Properties {
		typ, err := ParseType(prop.Type)
		if err != nil {
			return align.NodeInput{}, fmt.Errorf("property %q: %w", key, err)
		}
		decl = decl.WithProperty(key, prop.Column, typ)
		columnTypes[prop.Column] = typ
	}
	data, err := buildTable(columnTypes, doc.Rows)
	if err != nil {
		return align.NodeInput{}, err
	}
	return align.NodeInput{Decl: decl, Data: data}, nil
}

func materializeRelationship(doc RelationDoc) (align.RelationshipInput, error) {
	decl := domain.NewRelationshipTable(doc.Name, doc.IDColumn, doc.SourceColumn, doc.TargetColumn).
		WithImpliedTypes(doc.ImpliedTypes...)
	for relType, column := range doc.OptionalTypes {
		decl = decl.WithOptionalType(relType, column)
	}
	columnTypes := map[string]domain.Type{
		doc.IDColumn:     domain.IntegerType(),
		doc.SourceColumn: domain.IntegerType(),
		doc.TargetColumn: domain.IntegerType(),
	}
	for _, column := range doc.OptionalTypes {
		columnTypes[column] = domain.BooleanType()
	}
	for key, prop := range doc.Properties {
		typ, err := ParseType(prop.Type)
		if err != nil {
			return align.RelationshipInput{}, fmt.Errorf("property %q: %w", key, err)
		}
		decl = decl.WithProperty(key, prop.Column, typ)
		columnTypes[prop.Column] = typ
	}
	data, err := buildTable(columnTypes, doc.Rows)
	if err != nil {
		return align.RelationshipInput{}, err
	}
	return align.RelationshipInput{Decl: decl, Data: data}, nil
}

// buildTable turns inline row maps into a columnar table. Columns appear in
// name order; a row missing a column contributes null.
func buildTable(columnTypes map[string]domain.Type, rows []map[string]any) (*table.Table, error) {
	names := make([]string, 0, len(columnTypes))
	for name := range columnTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := table.New(len(rows))
	for _, name := range names {
		typ := columnTypes[name]
		values := make([]any, len(rows))
		for i, row := range rows {
			value, err := normalizeValue(row[name], typ)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			values[i] = value
		}
		if err := out.AddColumn(name, table.NewColumn(typ, values)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalizeValue maps YAML scalar decodings onto the runtime value model.
func normalizeValue(v any, typ domain.Type) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		if typ.Kind == domain.KindFloat {
			return float64(n), nil
		}
		return int64(n), nil
	case int64:
		if typ.Kind == domain.KindFloat {
			return float64(n), nil
		}
		return n, nil
	case float64:
		return n, nil
	case bool:
		return n, nil
	case string:
		if typ.Kind == domain.KindTemporal {
			ts, err := time.Parse(time.RFC3339, n)
			if err != nil {
				return nil, fmt.Errorf("parse timestamp %q: %w", n, err)
			}
			return ts, nil
		}
		if typ.Kind == domain.KindDuration {
			d, err := time.ParseDuration(n)
			if err != nil {
				return nil, fmt.Errorf("parse duration %q: %w", n, err)
			}
			return d, nil
		}
		return n, nil
	case time.Time:
		return n, nil
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			norm, err := normalizeValue(e, typ.ElemType())
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

// ParseType parses declared type names: INTEGER, FLOAT, STRING, BOOLEAN,
// TEMPORAL, DURATION, LIST<...>; a trailing ? marks the type nullable.
func ParseType(s string) (domain.Type, error) {
	trimmed := strings.TrimSpace(s)
	nullable := strings.HasSuffix(trimmed, "?")
	trimmed = strings.TrimSuffix(trimmed, "?")

	var t domain.Type
	upper := strings.ToUpper(trimmed)
	switch {
	case upper == "INTEGER":
		t = domain.IntegerType()
	case upper == "FLOAT":
		t = domain.FloatType()
	case upper == "STRING":
		t = domain.StringType()
	case upper == "BOOLEAN":
		t = domain.BooleanType()
	case upper == "TEMPORAL":
		t = domain.TemporalType()
	case upper == "DURATION":
		t = domain.DurationType()
	case strings.HasPrefix(upper, "LIST<") && strings.HasSuffix(upper, ">"):
		elem, err := ParseType(trimmed[len("LIST<") : len(trimmed)-1])
		if err != nil {
			return domain.Type{}, err
		}
		t = domain.ListOf(elem)
	default:
		return domain.Type{}, fmt.Errorf("unknown type %q", s)
	}
	if nullable {
		t = t.AsNullable()
	}
	return t, nil
}
