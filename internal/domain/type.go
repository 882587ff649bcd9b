package domain

import "fmt"

// Kind enumerates the column type kinds understood by the graph layer.
type Kind string

const (
	// KindNothing is the bottom type: no value inhabits it. It is the
	// identity of the widening join and the element type of empty lists.
	KindNothing Kind = "NOTHING"
	// KindNull is the type of an expression that is statically always null.
	KindNull         Kind = "NULL"
	KindBoolean      Kind = "BOOLEAN"
	KindInteger      Kind = "INTEGER"
	KindFloat        Kind = "FLOAT"
	KindString       Kind = "STRING"
	KindTemporal     Kind = "TEMPORAL"
	KindDuration     Kind = "DURATION"
	KindList         Kind = "LIST"
	KindMap          Kind = "MAP"
	KindIdentifier   Kind = "IDENTIFIER"
	KindNode         Kind = "NODE"
	KindRelationship Kind = "RELATIONSHIP"
)

// Type is the static type attached to columns and expression nodes.
type Type struct {
	Kind     Kind
	Nullable bool
	Elem     *Type           // element type for KindList
	Fields   map[string]Type // field types for KindMap
}

func NewType(kind Kind) Type  { return Type{Kind: kind} }
func NothingType() Type       { return Type{Kind: KindNothing} }
func NullType() Type          { return Type{Kind: KindNull, Nullable: true} }
func BooleanType() Type       { return Type{Kind: KindBoolean} }
func IntegerType() Type       { return Type{Kind: KindInteger} }
func FloatType() Type         { return Type{Kind: KindFloat} }
func StringType() Type        { return Type{Kind: KindString} }
func TemporalType() Type      { return Type{Kind: KindTemporal} }
func DurationType() Type      { return Type{Kind: KindDuration} }
func IdentifierType() Type    { return Type{Kind: KindIdentifier} }
func NodeType() Type          { return Type{Kind: KindNode} }
func RelationshipType() Type  { return Type{Kind: KindRelationship} }

// ListOf builds a list type over the given element type.
func ListOf(elem Type) Type {
	return Type{Kind: KindList, Elem: &elem}
}

// EmptyListType is the type of an empty list literal.
func EmptyListType() Type {
	return ListOf(NothingType())
}

// MapOf builds a map type with the given field types.
func MapOf(fields map[string]Type) Type {
	copied := make(map[string]Type, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Type{Kind: KindMap, Fields: copied}
}

// AsNullable returns the same type marked nullable.
func (t Type) AsNullable() Type {
	t.Nullable = true
	return t
}

// IsNullOnly reports whether the type admits no value other than null.
func (t Type) IsNullOnly() bool {
	return t.Kind == KindNull
}

// ElemType returns the list element type, defaulting to Nothing.
func (t Type) ElemType() Type {
	if t.Elem == nil {
		return NothingType()
	}
	return *t.Elem
}

func (t Type) String() string {
	s := string(t.Kind)
	switch t.Kind {
	case KindList:
		s = fmt.Sprintf("LIST<%s>", t.ElemType())
	case KindMap:
		s = "MAP"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// SameShape reports whether two types agree ignoring nullability. Used by the
// compiler when resolving polymorphic operators by static operand types.
func (t Type) SameShape(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.ElemType().SameShape(o.ElemType())
	case KindMap:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for k, ft := range t.Fields {
			ot, ok := o.Fields[k]
			if !ok || !ft.SameShape(ot) {
				return false
			}
		}
	}
	return true
}

// Join widens two declared types into one common lossless type. It is the
// partial lattice join used during scan alignment: associative, commutative,
// with Nothing as identity. Incompatible kinds fail; the aligner surfaces the
// failure as a schema conflict rather than coercing silently.
func Join(a, b Type) (Type, error) {
	nullable := a.Nullable || b.Nullable

	switch {
	case a.Kind == KindNothing:
		b.Nullable = nullable
		return b, nil
	case b.Kind == KindNothing:
		a.Nullable = nullable
		return a, nil
	case a.Kind == KindNull && b.Kind == KindNull:
		return NullType(), nil
	case a.Kind == KindNull:
		return b.AsNullable(), nil
	case b.Kind == KindNull:
		return a.AsNullable(), nil
	}

	if a.Kind == b.Kind {
		switch a.Kind {
		case KindList:
			elem, err := Join(a.ElemType(), b.ElemType())
			if err != nil {
				return Type{}, fmt.Errorf("widen %s with %s: %w", a, b, err)
			}
			joined := ListOf(elem)
			joined.Nullable = nullable
			return joined, nil
		case KindMap:
			fields := make(map[string]Type, len(a.Fields)+len(b.Fields))
			for k, ft := range a.Fields {
				if ot, ok := b.Fields[k]; ok {
					joined, err := Join(ft, ot)
					if err != nil {
						return Type{}, fmt.Errorf("widen map field %q: %w", k, err)
					}
					fields[k] = joined
				} else {
					fields[k] = ft.AsNullable()
				}
			}
			for k, ot := range b.Fields {
				if _, ok := a.Fields[k]; !ok {
					fields[k] = ot.AsNullable()
				}
			}
			joined := MapOf(fields)
			joined.Nullable = nullable
			return joined, nil
		default:
			a.Nullable = nullable
			return a, nil
		}
	}

	// Numeric widening is the only cross-kind join.
	if (a.Kind == KindInteger && b.Kind == KindFloat) || (a.Kind == KindFloat && b.Kind == KindInteger) {
		joined := FloatType()
		joined.Nullable = nullable
		return joined, nil
	}

	return Type{}, fmt.Errorf("cannot widen %s with %s", a, b)
}
