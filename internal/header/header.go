// Package header implements the record header: the immutable registry mapping
// logical expressions to the physical columns of an aligned scan. It is the
// shared substrate between scan alignment (which writes it, via Builder) and
// expression compilation (which only reads it).
package header

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/slategraph/slate/internal/expr"
)

var (
	// ErrUnboundExpression signals a lookup for an expression the header has
	// no entry for. Always a caller error, never recovered.
	ErrUnboundExpression = errors.New("expression not bound to a column")
	// ErrColumnConflict signals a merge collision: one expression mapped to
	// two columns, or two expressions collapsing onto one column.
	ErrColumnConflict = errors.New("column conflict")
)

// EntryKind distinguishes how an expression came to occupy a column.
type EntryKind string

const (
	// OpaqueField is a bound variable occupying its own column (e.g. the id
	// column of a node variable).
	OpaqueField EntryKind = "OPAQUE_FIELD"
	// ProjectedField is a named variable bound to a derived expression.
	ProjectedField EntryKind = "PROJECTED_FIELD"
	// ProjectedExpr is an unnamed derived value such as n.name.
	ProjectedExpr EntryKind = "PROJECTED_EXPR"
)

// Entry binds one expression to one physical column.
type Entry struct {
	Kind   EntryKind
	Expr   expr.Expr
	Column string
	// Owner is the variable the entry belongs to ("" when unowned).
	Owner string
}

// Header is an ordered, duplicate-free set of entries. Immutable once built.
type Header struct {
	entries  []Entry
	byKey    map[string]int
	byColumn map[string]int
	byOwner  map[string][]int
}

// Column resolves the physical column for an expression.
func (h *Header) Column(e expr.Expr) (string, error) {
	idx, ok := h.byKey[e.Key()]
	if !ok {
		return "", fmt.Errorf("%q: %w", e.Key(), ErrUnboundExpression)
	}
	return h.entries[idx].Column, nil
}

// Contains reports whether the header has an entry for the expression.
func (h *Header) Contains(e expr.Expr) bool {
	_, ok := h.byKey[e.Key()]
	return ok
}

// Entries returns the entries in registration order.
func (h *Header) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Columns returns the column names in registration order.
func (h *Header) Columns() []string {
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Column
	}
	return out
}

// LabelFlag pairs a label name with its membership flag expression.
type LabelFlag struct {
	Label  string
	Expr   expr.HasLabel
	Column string
}

// LabelsFor lists the label flag entries owned by a node variable, sorted by
// label name.
func (h *Header) LabelsFor(nodeVar string) []LabelFlag {
	var flags []LabelFlag
	for _, idx := range h.byOwner[nodeVar] {
		if hl, ok := h.entries[idx].Expr.(expr.HasLabel); ok {
			flags = append(flags, LabelFlag{Label: hl.Label, Expr: hl, Column: h.entries[idx].Column})
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Label < flags[j].Label })
	return flags
}

// TypeFlag pairs a relationship type name with its membership flag expression.
type TypeFlag struct {
	RelType string
	Expr    expr.HasType
	Column  string
}

// TypesFor lists the type flag entries owned by a relationship variable,
// sorted by type name.
func (h *Header) TypesFor(relVar string) []TypeFlag {
	var flags []TypeFlag
	for _, idx := range h.byOwner[relVar] {
		if ht, ok := h.entries[idx].Expr.(expr.HasType); ok {
			flags = append(flags, TypeFlag{RelType: ht.RelType, Expr: ht, Column: h.entries[idx].Column})
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].RelType < flags[j].RelType })
	return flags
}

// PropertyEntry pairs a property key with its access expression.
type PropertyEntry struct {
	PropKey string
	Expr    expr.Property
	Column  string
}

// PropertiesFor lists the property entries owned by an entity variable,
// sorted by property key.
func (h *Header) PropertiesFor(entityVar string) []PropertyEntry {
	var props []PropertyEntry
	for _, idx := range h.byOwner[entityVar] {
		if p, ok := h.entries[idx].Expr.(expr.Property); ok {
			props = append(props, PropertyEntry{PropKey: p.PropKey, Expr: p, Column: h.entries[idx].Column})
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].PropKey < props[j].PropKey })
	return props
}

// Merge unions two headers into a new one. The same expression must map to
// the same column on both sides, and no two distinct expressions may share a
// column name.
func (h *Header) Merge(other *Header) (*Header, error) {
	b := NewBuilder()
	for _, e := range h.entries {
		if err := b.add(e); err != nil {
			return nil, err
		}
	}
	for _, e := range other.entries {
		if existing, ok := b.byKey[e.Expr.Key()]; ok {
			if b.entries[existing].Column != e.Column {
				return nil, fmt.Errorf("expression %q maps to columns %q and %q: %w",
					e.Expr.Key(), b.entries[existing].Column, e.Column, ErrColumnConflict)
			}
			continue
		}
		if err := b.add(e); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Builder accumulates entries during alignment. Build freezes the result.
type Builder struct {
	entries  []Entry
	byKey    map[string]int
	byColumn map[string]int
}

func NewBuilder() *Builder {
	return &Builder{byKey: map[string]int{}, byColumn: map[string]int{}}
}

func (b *Builder) add(e Entry) error {
	key := e.Expr.Key()
	if idx, ok := b.byKey[key]; ok {
		if b.entries[idx].Column != e.Column {
			return fmt.Errorf("expression %q maps to columns %q and %q: %w",
				key, b.entries[idx].Column, e.Column, ErrColumnConflict)
		}
		return nil
	}
	if idx, ok := b.byColumn[e.Column]; ok {
		return fmt.Errorf("expressions %q and %q both map to column %q: %w",
			b.entries[idx].Expr.Key(), key, e.Column, ErrColumnConflict)
	}
	b.byKey[key] = len(b.entries)
	b.byColumn[e.Column] = len(b.entries)
	b.entries = append(b.entries, e)
	return nil
}

// AddOpaqueField registers a bound variable with its own column.
func (b *Builder) AddOpaqueField(v expr.Var, column string) error {
	return b.add(Entry{Kind: OpaqueField, Expr: v, Column: column, Owner: v.Name})
}

// AddProjectedField registers a named variable bound to a derived expression.
func (b *Builder) AddProjectedField(alias expr.Var, column string) error {
	return b.add(Entry{Kind: ProjectedField, Expr: alias, Column: column, Owner: alias.Name})
}

// AddProjectedExpr registers an unnamed derived expression.
func (b *Builder) AddProjectedExpr(e expr.Expr, column string) error {
	owner := ""
	if v, ok := expr.Owner(e); ok {
		owner = v.Name
	}
	return b.add(Entry{Kind: ProjectedExpr, Expr: e, Column: column, Owner: owner})
}

// Build freezes the accumulated entries into an immutable header with the
// per-owner index the introspection lookups use.
func (b *Builder) Build() *Header {
	h := &Header{
		entries:  append([]Entry(nil), b.entries...),
		byKey:    make(map[string]int, len(b.entries)),
		byColumn: make(map[string]int, len(b.entries)),
		byOwner:  map[string][]int{},
	}
	for i, e := range h.entries {
		h.byKey[e.Expr.Key()] = i
		h.byColumn[e.Column] = i
		if e.Owner != "" {
			h.byOwner[e.Owner] = append(h.byOwner[e.Owner], i)
		}
	}
	return h
}

// ColumnNameFor derives a deterministic physical column name for an
// expression. Names stay within [A-Za-z0-9_] so any engine accepts them.
func ColumnNameFor(e expr.Expr) string {
	switch x := e.(type) {
	case expr.Var:
		return sanitize(x.Name)
	case expr.HasLabel:
		return sanitize(x.Node.Name) + "_hasLabel_" + sanitize(x.Label)
	case expr.HasType:
		return sanitize(x.Rel.Name) + "_hasType_" + sanitize(x.RelType)
	case expr.StartNode:
		return sanitize(x.Rel.Name) + "_source"
	case expr.EndNode:
		return sanitize(x.Rel.Name) + "_target"
	case expr.Property:
		if v, ok := x.Subject.(expr.Var); ok {
			return sanitize(v.Name) + "_prop_" + sanitize(x.PropKey)
		}
	}
	sum := fnv.New32a()
	sum.Write([]byte(e.Key()))
	return fmt.Sprintf("expr_%08x", sum.Sum32())
}

func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
