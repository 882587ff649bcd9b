// Package align merges heterogeneous entity tables into one canonical scan:
// a unified columnar table plus the record header describing it. Each input
// table declares its own id, label/type, and property mappings; alignment
// computes the union layout, widens property types, and projects every input
// onto it. Inputs are immutable; every invocation produces a fresh scan.
package align

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/expr"
	"github.com/slategraph/slate/internal/header"
	"github.com/slategraph/slate/internal/identifier"
	"github.com/slategraph/slate/internal/table"
)

// ErrSchemaConflict signals property declarations that cannot be widened into
// one common type. Alignment aborts entirely rather than dropping the
// offending table.
var ErrSchemaConflict = errors.New("schema conflict")

// NodeInput pairs a node table declaration with its backing data.
type NodeInput struct {
	Decl domain.NodeTable
	Data *table.Table
}

// RelationshipInput pairs a relationship table declaration with its backing
// data.
type RelationshipInput struct {
	Decl domain.RelationshipTable
	Data *table.Table
}

// Scan is the alignment output: one unified table and the header mapping
// logical expressions onto its columns. Neither is mutated after alignment.
type Scan struct {
	Var    string
	Header *header.Header
	Table  *table.Table
}

type options struct {
	subset []string
}

// Option adjusts one alignment call.
type Option func(*options)

// WithLabelFilter restricts node alignment to rows whose label set is a
// superset of the given labels; flag columns outside the set are dropped
// from the header.
func WithLabelFilter(labels ...string) Option {
	return func(o *options) { o.subset = labels }
}

// WithTypeFilter restricts relationship alignment to rows carrying all of
// the given relationship types.
func WithTypeFilter(types ...string) Option {
	return func(o *options) { o.subset = types }
}

// AlignNodes unifies node tables under one variable. The output table is the
// concatenation of the per-table projections in input order; its row count is
// the sum of the (post-filter) input row counts. Rows are never merged or
// deduplicated: id uniqueness within one graph is a caller precondition.
func AlignNodes(ctx context.Context, varName string, inputs []NodeInput, opts ...Option) (*Scan, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("align nodes %q: no input tables", varName)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kept := inputs
	if len(o.subset) > 0 {
		kept = nil
		for _, in := range inputs {
			if declMentionsAll(in.Decl, o.subset) {
				kept = append(kept, in)
			}
		}
	}

	labels := append([]string(nil), o.subset...)
	if len(labels) == 0 {
		seen := map[string]struct{}{}
		for _, in := range kept {
			for _, l := range in.Decl.ImpliedLabels {
				seen[l] = struct{}{}
			}
			for l := range in.Decl.OptionalLabels {
				seen[l] = struct{}{}
			}
		}
		labels = make([]string, 0, len(seen))
		for l := range seen {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)

	// The property union spans every input, filtered tables included: a
	// filter narrows the rows, never the property layout or its widening.
	decls := make([]declProperties, len(inputs))
	for i, in := range inputs {
		decls[i] = declProperties{name: in.Decl.Name, props: in.Decl.Properties}
	}
	props, err := widenProperties(decls)
	if err != nil {
		return nil, err
	}

	nodeVar := expr.NewVar(varName, domain.NodeType())
	hdr, err := buildNodeHeader(nodeVar, labels, props)
	if err != nil {
		return nil, err
	}

	if len(kept) == 0 {
		empty, err := emptyNodeTable(nodeVar, labels, props)
		if err != nil {
			return nil, err
		}
		return &Scan{Var: varName, Header: hdr, Table: empty}, nil
	}

	parts := make([]*table.Table, len(kept))
	g, _ := errgroup.WithContext(ctx)
	for i, in := range kept {
		g.Go(func() error {
			part, err := projectNodeTable(nodeVar, in, labels, props, o.subset)
			if err != nil {
				return fmt.Errorf("project table %q: %w", in.Decl.Name, err)
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unified, err := table.Concat(parts...)
	if err != nil {
		return nil, err
	}
	return &Scan{Var: varName, Header: hdr, Table: unified}, nil
}

// AlignRelationships unifies relationship tables under one variable, with
// source and target id columns alongside the id.
func AlignRelationships(ctx context.Context, varName string, inputs []RelationshipInput, opts ...Option) (*Scan, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("align relationships %q: no input tables", varName)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kept := inputs
	if len(o.subset) > 0 {
		kept = nil
		for _, in := range inputs {
			if relDeclMentionsAll(in.Decl, o.subset) {
				kept = append(kept, in)
			}
		}
	}

	relTypes := append([]string(nil), o.subset...)
	if len(relTypes) == 0 {
		seen := map[string]struct{}{}
		for _, in := range kept {
			for _, rt := range in.Decl.ImpliedTypes {
				seen[rt] = struct{}{}
			}
			for rt := range in.Decl.OptionalTypes {
				seen[rt] = struct{}{}
			}
		}
		relTypes = make([]string, 0, len(seen))
		for rt := range seen {
			relTypes = append(relTypes, rt)
		}
	}
	sort.Strings(relTypes)

	decls := make([]declProperties, len(inputs))
	for i, in := range inputs {
		decls[i] = declProperties{name: in.Decl.Name, props: in.Decl.Properties}
	}
	props, err := widenProperties(decls)
	if err != nil {
		return nil, err
	}

	relVar := expr.NewVar(varName, domain.RelationshipType())
	hdr, err := buildRelHeader(relVar, relTypes, props)
	if err != nil {
		return nil, err
	}

	if len(kept) == 0 {
		empty, err := emptyRelTable(relVar, relTypes, props)
		if err != nil {
			return nil, err
		}
		return &Scan{Var: varName, Header: hdr, Table: empty}, nil
	}

	parts := make([]*table.Table, len(kept))
	g, _ := errgroup.WithContext(ctx)
	for i, in := range kept {
		g.Go(func() error {
			part, err := projectRelTable(relVar, in, relTypes, props, o.subset)
			if err != nil {
				return fmt.Errorf("project table %q: %w", in.Decl.Name, err)
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unified, err := table.Concat(parts...)
	if err != nil {
		return nil, err
	}
	return &Scan{Var: varName, Header: hdr, Table: unified}, nil
}

// propertySpec is one unified property column: key plus widened type.
type propertySpec struct {
	key string
	typ domain.Type
}

type declProperties struct {
	name  string
	props map[string]domain.PropertyMapping
}

// widenProperties folds the per-table property declarations through the type
// lattice. A key missing from some table makes its unified column nullable.
func widenProperties(decls []declProperties) ([]propertySpec, error) {
	keys := map[string]struct{}{}
	for _, d := range decls {
		for k := range d.props {
			keys[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	specs := make([]propertySpec, 0, len(sorted))
	for _, key := range sorted {
		unified := domain.NothingType()
		declaredEverywhere := true
		for _, d := range decls {
			mapping, ok := d.props[key]
			if !ok {
				declaredEverywhere = false
				continue
			}
			joined, err := domain.Join(unified, mapping.Type)
			if err != nil {
				return nil, fmt.Errorf("property %q in table %q: %v: %w", key, d.name, err, ErrSchemaConflict)
			}
			unified = joined
		}
		if !declaredEverywhere {
			unified = unified.AsNullable()
		}
		specs = append(specs, propertySpec{key: key, typ: unified})
	}
	return specs, nil
}

func buildNodeHeader(nodeVar expr.Var, labels []string, props []propertySpec) (*header.Header, error) {
	b := header.NewBuilder()
	if err := b.AddOpaqueField(nodeVar, header.ColumnNameFor(nodeVar)); err != nil {
		return nil, err
	}
	for _, l := range labels {
		flag := expr.HasLabel{Node: nodeVar, Label: l}
		if err := b.AddProjectedExpr(flag, header.ColumnNameFor(flag)); err != nil {
			return nil, err
		}
	}
	for _, p := range props {
		access := expr.Property{Subject: nodeVar, PropKey: p.key, T: p.typ}
		if err := b.AddProjectedExpr(access, header.ColumnNameFor(access)); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func buildRelHeader(relVar expr.Var, relTypes []string, props []propertySpec) (*header.Header, error) {
	b := header.NewBuilder()
	if err := b.AddOpaqueField(relVar, header.ColumnNameFor(relVar)); err != nil {
		return nil, err
	}
	src := expr.StartNode{Rel: relVar}
	if err := b.AddProjectedExpr(src, header.ColumnNameFor(src)); err != nil {
		return nil, err
	}
	dst := expr.EndNode{Rel: relVar}
	if err := b.AddProjectedExpr(dst, header.ColumnNameFor(dst)); err != nil {
		return nil, err
	}
	for _, rt := range relTypes {
		flag := expr.HasType{Rel: relVar, RelType: rt}
		if err := b.AddProjectedExpr(flag, header.ColumnNameFor(flag)); err != nil {
			return nil, err
		}
	}
	for _, p := range props {
		access := expr.Property{Subject: relVar, PropKey: p.key, T: p.typ}
		if err := b.AddProjectedExpr(access, header.ColumnNameFor(access)); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// emptyNodeTable is the projection used when a filter excludes every input
// table: the full column layout with zero rows, so the header stays truthful.
func emptyNodeTable(nodeVar expr.Var, labels []string, props []propertySpec) (*table.Table, error) {
	out := table.New(0)
	if err := out.AddColumn(header.ColumnNameFor(nodeVar), table.NewColumn(domain.IdentifierType(), nil)); err != nil {
		return nil, err
	}
	for _, l := range labels {
		flag := expr.HasLabel{Node: nodeVar, Label: l}
		if err := out.AddColumn(header.ColumnNameFor(flag), table.NewColumn(domain.BooleanType(), nil)); err != nil {
			return nil, err
		}
	}
	for _, p := range props {
		access := expr.Property{Subject: nodeVar, PropKey: p.key, T: p.typ}
		if err := out.AddColumn(header.ColumnNameFor(access), table.NewColumn(p.typ, nil)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func emptyRelTable(relVar expr.Var, relTypes []string, props []propertySpec) (*table.Table, error) {
	out := table.New(0)
	if err := out.AddColumn(header.ColumnNameFor(relVar), table.NewColumn(domain.IdentifierType(), nil)); err != nil {
		return nil, err
	}
	if err := out.AddColumn(header.ColumnNameFor(expr.StartNode{Rel: relVar}), table.NewColumn(domain.IdentifierType(), nil)); err != nil {
		return nil, err
	}
	if err := out.AddColumn(header.ColumnNameFor(expr.EndNode{Rel: relVar}), table.NewColumn(domain.IdentifierType(), nil)); err != nil {
		return nil, err
	}
	for _, rt := range relTypes {
		flag := expr.HasType{Rel: relVar, RelType: rt}
		if err := out.AddColumn(header.ColumnNameFor(flag), table.NewColumn(domain.BooleanType(), nil)); err != nil {
			return nil, err
		}
	}
	for _, p := range props {
		access := expr.Property{Subject: relVar, PropKey: p.key, T: p.typ}
		if err := out.AddColumn(header.ColumnNameFor(access), table.NewColumn(p.typ, nil)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func declMentionsAll(decl domain.NodeTable, labels []string) bool {
	for _, l := range labels {
		if !decl.HasLabel(l) {
			return false
		}
	}
	return true
}

func relDeclMentionsAll(decl domain.RelationshipTable, relTypes []string) bool {
	for _, rt := range relTypes {
		if !decl.HasType(rt) {
			return false
		}
	}
	return true
}

// filterRows keeps the rows whose indicator columns for every requested but
// merely optional label are true. Implied labels hold for all rows.
func filterRows(data *table.Table, indicatorCols []string) (*table.Table, error) {
	if len(indicatorCols) == 0 {
		return data, nil
	}
	cols := make([]table.Column, len(indicatorCols))
	for i, name := range indicatorCols {
		col, err := data.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	var keep []int
	for row := 0; row < data.RowCount(); row++ {
		all := true
		for _, col := range cols {
			if b, ok := col.Values[row].(bool); !ok || !b {
				all = false
				break
			}
		}
		if all {
			keep = append(keep, row)
		}
	}
	return data.Select(keep)
}

func projectNodeTable(nodeVar expr.Var, in NodeInput, labels []string, props []propertySpec, subset []string) (*table.Table, error) {
	data := in.Data
	if len(subset) > 0 {
		var indicators []string
		for _, l := range subset {
			if in.Decl.ImpliesLabel(l) {
				continue
			}
			indicators = append(indicators, in.Decl.OptionalLabels[l])
		}
		filtered, err := filterRows(data, indicators)
		if err != nil {
			return nil, err
		}
		data = filtered
	}

	rows := data.RowCount()
	out := table.New(rows)

	idCol, err := encodedIDColumn(data, in.Decl.IDColumn)
	if err != nil {
		return nil, err
	}
	if err := out.AddColumn(header.ColumnNameFor(nodeVar), idCol); err != nil {
		return nil, err
	}

	for _, l := range labels {
		flag := expr.HasLabel{Node: nodeVar, Label: l}
		col, err := labelFlagColumn(data, rows, in.Decl.ImpliesLabel(l), in.Decl.OptionalLabels[l])
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", l, err)
		}
		if err := out.AddColumn(header.ColumnNameFor(flag), col); err != nil {
			return nil, err
		}
	}

	for _, p := range props {
		access := expr.Property{Subject: nodeVar, PropKey: p.key, T: p.typ}
		col, err := propertyColumn(data, rows, in.Decl.Properties, p)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.key, err)
		}
		if err := out.AddColumn(header.ColumnNameFor(access), col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func projectRelTable(relVar expr.Var, in RelationshipInput, relTypes []string, props []propertySpec, subset []string) (*table.Table, error) {
	data := in.Data
	if len(subset) > 0 {
		var indicators []string
		for _, rt := range subset {
			if in.Decl.ImpliesType(rt) {
				continue
			}
			indicators = append(indicators, in.Decl.OptionalTypes[rt])
		}
		filtered, err := filterRows(data, indicators)
		if err != nil {
			return nil, err
		}
		data = filtered
	}

	rows := data.RowCount()
	out := table.New(rows)

	idCol, err := encodedIDColumn(data, in.Decl.IDColumn)
	if err != nil {
		return nil, err
	}
	if err := out.AddColumn(header.ColumnNameFor(relVar), idCol); err != nil {
		return nil, err
	}
	srcCol, err := encodedIDColumn(data, in.Decl.SourceColumn)
	if err != nil {
		return nil, err
	}
	if err := out.AddColumn(header.ColumnNameFor(expr.StartNode{Rel: relVar}), srcCol); err != nil {
		return nil, err
	}
	dstCol, err := encodedIDColumn(data, in.Decl.TargetColumn)
	if err != nil {
		return nil, err
	}
	if err := out.AddColumn(header.ColumnNameFor(expr.EndNode{Rel: relVar}), dstCol); err != nil {
		return nil, err
	}

	for _, rt := range relTypes {
		flag := expr.HasType{Rel: relVar, RelType: rt}
		col, err := labelFlagColumn(data, rows, in.Decl.ImpliesType(rt), in.Decl.OptionalTypes[rt])
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", rt, err)
		}
		if err := out.AddColumn(header.ColumnNameFor(flag), col); err != nil {
			return nil, err
		}
	}

	for _, p := range props {
		access := expr.Property{Subject: relVar, PropKey: p.key, T: p.typ}
		col, err := propertyColumn(data, rows, in.Decl.Properties, p)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.key, err)
		}
		if err := out.AddColumn(header.ColumnNameFor(access), col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encodedIDColumn reads the raw integer id column and encodes every value
// into an order-preserving identifier.
func encodedIDColumn(data *table.Table, column string) (table.Column, error) {
	src, err := data.Column(column)
	if err != nil {
		return table.Column{}, err
	}
	values := make([]any, len(src.Values))
	for i, v := range src.Values {
		raw, ok := v.(int64)
		if !ok {
			return table.Column{}, fmt.Errorf("id column %q row %d: expected integer, got %T", column, i, v)
		}
		values[i] = identifier.Encode(raw)
	}
	return table.NewColumn(domain.IdentifierType(), values), nil
}

// labelFlagColumn builds an exact true/false membership column: literal true
// for implied labels, the table's own indicator for optional ones, literal
// false otherwise. A null indicator counts as false so membership never needs
// three-valued logic.
func labelFlagColumn(data *table.Table, rows int, implied bool, indicatorCol string) (table.Column, error) {
	if implied {
		return table.ConstColumn(domain.BooleanType(), true, rows), nil
	}
	if indicatorCol == "" {
		return table.ConstColumn(domain.BooleanType(), false, rows), nil
	}
	src, err := data.Column(indicatorCol)
	if err != nil {
		return table.Column{}, err
	}
	values := make([]any, len(src.Values))
	for i, v := range src.Values {
		b, ok := v.(bool)
		values[i] = ok && b
	}
	return table.NewColumn(domain.BooleanType(), values), nil
}

// propertyColumn copies a declared property column cast to the widened type,
// or an all-null column when the table does not declare the key.
func propertyColumn(data *table.Table, rows int, declared map[string]domain.PropertyMapping, spec propertySpec) (table.Column, error) {
	mapping, ok := declared[spec.key]
	if !ok {
		return table.ConstColumn(spec.typ, nil, rows), nil
	}
	src, err := data.Column(mapping.Column)
	if err != nil {
		return table.Column{}, err
	}
	values := make([]any, len(src.Values))
	for i, v := range src.Values {
		cast, err := castValue(v, spec.typ)
		if err != nil {
			return table.Column{}, fmt.Errorf("row %d: %w", i, err)
		}
		values[i] = cast
	}
	return table.NewColumn(spec.typ, values), nil
}

// castValue converts a source value to the widened column type. The lattice
// only ever widens, so the cast is lossless.
func castValue(v any, target domain.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if target.Kind == domain.KindFloat {
		if n, ok := v.(int64); ok {
			return float64(n), nil
		}
	}
	if target.Kind == domain.KindList {
		if items, ok := v.([]any); ok {
			out := make([]any, len(items))
			for i, item := range items {
				cast, err := castValue(item, target.ElemType())
				if err != nil {
					return nil, err
				}
				out[i] = cast
			}
			return out, nil
		}
	}
	have := domain.ValueKind(v)
	if !domain.KindAccepts(target.Kind, have) {
		return nil, fmt.Errorf("value %v (%s) does not fit widened type %s", v, have, target)
	}
	return v, nil
}
