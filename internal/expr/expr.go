// Package expr defines the typed expression tree the compiler lowers onto
// column operations. The tree is produced by an external parser/type-checker;
// every node arrives with its resolved static type. The set of variants is
// deliberately closed: compilation dispatches exhaustively over Kind and
// fails loudly on anything it does not recognize.
package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/slategraph/slate/internal/domain"
)

// Kind discriminates expression variants.
type Kind string

const (
	KindVar           Kind = "VAR"
	KindParam         Kind = "PARAM"
	KindLiteral       Kind = "LITERAL"
	KindListLit       Kind = "LIST_LIT"
	KindMapLit        Kind = "MAP_LIT"
	KindProperty      Kind = "PROPERTY"
	KindHasLabel      Kind = "HAS_LABEL"
	KindHasType       Kind = "HAS_TYPE"
	KindStartNode     Kind = "START_NODE"
	KindEndNode       Kind = "END_NODE"
	KindIDOf          Kind = "ID_OF"
	KindNot           Kind = "NOT"
	KindAnds          Kind = "ANDS"
	KindOrs           Kind = "ORS"
	KindEquals        Kind = "EQUALS"
	KindLessThan      Kind = "LESS_THAN"
	KindLessThanEq    Kind = "LESS_THAN_EQ"
	KindGreaterThan   Kind = "GREATER_THAN"
	KindGreaterThanEq Kind = "GREATER_THAN_EQ"
	KindIn            Kind = "IN"
	KindIsNull        Kind = "IS_NULL"
	KindIsNotNull     Kind = "IS_NOT_NULL"
	KindAdd           Kind = "ADD"
	KindSubtract      Kind = "SUBTRACT"
	KindMultiply      Kind = "MULTIPLY"
	KindDivide        Kind = "DIVIDE"
	KindLabels        Kind = "LABELS"
	KindTypeOf        Kind = "TYPE_OF"
	KindKeys          Kind = "KEYS"
	KindProperties    Kind = "PROPERTIES"
	KindCoalesce      Kind = "COALESCE"
	KindToString      Kind = "TO_STRING"
	KindToUpper       Kind = "TO_UPPER"
	KindToLower       Kind = "TO_LOWER"
	KindTrim          Kind = "TRIM"
	KindStartsWith    Kind = "STARTS_WITH"
	KindEndsWith      Kind = "ENDS_WITH"
	KindContains      Kind = "CONTAINS"
	KindSize          Kind = "SIZE"
)

// AllKinds lists every expression variant. The compiler's exhaustiveness test
// walks this list; a variant added here without a compiler case fails that
// test.
var AllKinds = []Kind{
	KindVar, KindParam, KindLiteral, KindListLit, KindMapLit, KindProperty,
	KindHasLabel, KindHasType, KindStartNode, KindEndNode, KindIDOf,
	KindNot, KindAnds, KindOrs,
	KindEquals, KindLessThan, KindLessThanEq, KindGreaterThan, KindGreaterThanEq,
	KindIn, KindIsNull, KindIsNotNull,
	KindAdd, KindSubtract, KindMultiply, KindDivide,
	KindLabels, KindTypeOf, KindKeys, KindProperties,
	KindCoalesce, KindToString, KindToUpper, KindToLower, KindTrim,
	KindStartsWith, KindEndsWith, KindContains, KindSize,
}

// Expr is one node of the expression tree.
type Expr interface {
	Kind() Kind
	// Type is the static type resolved by the external type-checker.
	Type() domain.Type
	// Key is the canonical form used as registry key: two expressions are
	// the same column candidate iff their keys are equal.
	Key() string
}

// Var is a bound query variable (a node, relationship, or projected value).
type Var struct {
	Name string
	T    domain.Type
}

func NewVar(name string, t domain.Type) Var { return Var{Name: name, T: t} }

func (v Var) Kind() Kind        { return KindVar }
func (v Var) Type() domain.Type { return v.T }
func (v Var) Key() string       { return v.Name }

// Param references a query parameter resolved at compile time.
type Param struct {
	Name string
	T    domain.Type
}

func (p Param) Kind() Kind        { return KindParam }
func (p Param) Type() domain.Type { return p.T }
func (p Param) Key() string       { return "$" + p.Name }

// Literal is a constant value of the carried type.
type Literal struct {
	Value any
	T     domain.Type
}

func NullLiteral() Literal            { return Literal{Value: nil, T: domain.NullType()} }
func IntLiteral(v int64) Literal      { return Literal{Value: v, T: domain.IntegerType()} }
func FloatLiteral(v float64) Literal  { return Literal{Value: v, T: domain.FloatType()} }
func StringLiteral(v string) Literal  { return Literal{Value: v, T: domain.StringType()} }
func BoolLiteral(v bool) Literal      { return Literal{Value: v, T: domain.BooleanType()} }
func TrueLiteral() Literal            { return BoolLiteral(true) }
func FalseLiteral() Literal           { return BoolLiteral(false) }

func (l Literal) Kind() Kind        { return KindLiteral }
func (l Literal) Type() domain.Type { return l.T }
func (l Literal) Key() string       { return fmt.Sprintf("lit(%v:%s)", l.Value, l.T) }

// ListLit is a list constructor.
type ListLit struct {
	Elems []Expr
	T     domain.Type
}

func (l ListLit) Kind() Kind        { return KindListLit }
func (l ListLit) Type() domain.Type { return l.T }
func (l ListLit) Key() string       { return "list(" + joinKeys(l.Elems) + ")" }

// MapEntry is one key/value pair of a map constructor.
type MapEntry struct {
	Key   string
	Value Expr
}

// MapLit is a map constructor with a statically known key set.
type MapLit struct {
	Entries []MapEntry
	T       domain.Type
}

func (m MapLit) Kind() Kind        { return KindMapLit }
func (m MapLit) Type() domain.Type { return m.T }
func (m MapLit) Key() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key + ":" + e.Value.Key()
	}
	sort.Strings(parts)
	return "map(" + strings.Join(parts, ",") + ")"
}

// Property is a property access: entity, map, or temporal field lookup.
type Property struct {
	Subject Expr
	PropKey string
	T       domain.Type
}

func (p Property) Kind() Kind        { return KindProperty }
func (p Property) Type() domain.Type { return p.T }
func (p Property) Key() string       { return p.Subject.Key() + "." + p.PropKey }

// HasLabel tests node label membership; alignment guarantees the flag column
// is exact true/false, never null.
type HasLabel struct {
	Node  Var
	Label string
}

func (h HasLabel) Kind() Kind        { return KindHasLabel }
func (h HasLabel) Type() domain.Type { return domain.BooleanType() }
func (h HasLabel) Key() string       { return h.Node.Key() + ":" + h.Label }

// HasType tests relationship type membership.
type HasType struct {
	Rel     Var
	RelType string
}

func (h HasType) Kind() Kind        { return KindHasType }
func (h HasType) Type() domain.Type { return domain.BooleanType() }
func (h HasType) Key() string       { return h.Rel.Key() + "@" + h.RelType }

// StartNode is the source node id of a relationship variable.
type StartNode struct {
	Rel Var
}

func (s StartNode) Kind() Kind        { return KindStartNode }
func (s StartNode) Type() domain.Type { return domain.IdentifierType() }
func (s StartNode) Key() string       { return "startNode(" + s.Rel.Key() + ")" }

// EndNode is the target node id of a relationship variable.
type EndNode struct {
	Rel Var
}

func (e EndNode) Kind() Kind        { return KindEndNode }
func (e EndNode) Type() domain.Type { return domain.IdentifierType() }
func (e EndNode) Key() string       { return "endNode(" + e.Rel.Key() + ")" }

// IDOf is the id of an entity variable.
type IDOf struct {
	Entity Var
}

func (i IDOf) Kind() Kind        { return KindIDOf }
func (i IDOf) Type() domain.Type { return domain.IdentifierType() }
func (i IDOf) Key() string       { return "id(" + i.Entity.Key() + ")" }

// Not negates a boolean operand under three-valued logic.
type Not struct {
	Operand Expr
}

func (n Not) Kind() Kind        { return KindNot }
func (n Not) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (n Not) Key() string       { return "not(" + n.Operand.Key() + ")" }

// Ands folds its operand list under three-valued conjunction.
type Ands struct {
	Operands []Expr
}

func (a Ands) Kind() Kind        { return KindAnds }
func (a Ands) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (a Ands) Key() string       { return "ands(" + joinKeys(a.Operands) + ")" }

// Ors folds its operand list under three-valued disjunction.
type Ors struct {
	Operands []Expr
}

func (o Ors) Kind() Kind        { return KindOrs }
func (o Ors) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (o Ors) Key() string       { return "ors(" + joinKeys(o.Operands) + ")" }

// BinaryOp carries the two operands shared by comparisons and arithmetic.
type BinaryOp struct {
	Left  Expr
	Right Expr
}

type Equals struct{ BinaryOp }

func (e Equals) Kind() Kind        { return KindEquals }
func (e Equals) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (e Equals) Key() string       { return e.Left.Key() + "=" + e.Right.Key() }

type LessThan struct{ BinaryOp }

func (e LessThan) Kind() Kind        { return KindLessThan }
func (e LessThan) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (e LessThan) Key() string       { return e.Left.Key() + "<" + e.Right.Key() }

type LessThanEq struct{ BinaryOp }

func (e LessThanEq) Kind() Kind        { return KindLessThanEq }
func (e LessThanEq) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (e LessThanEq) Key() string       { return e.Left.Key() + "<=" + e.Right.Key() }

type GreaterThan struct{ BinaryOp }

func (e GreaterThan) Kind() Kind        { return KindGreaterThan }
func (e GreaterThan) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (e GreaterThan) Key() string       { return e.Left.Key() + ">" + e.Right.Key() }

type GreaterThanEq struct{ BinaryOp }

func (e GreaterThanEq) Kind() Kind        { return KindGreaterThanEq }
func (e GreaterThanEq) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (e GreaterThanEq) Key() string       { return e.Left.Key() + ">=" + e.Right.Key() }

// In tests list membership under three-valued logic.
type In struct {
	Elem Expr
	List Expr
}

func (i In) Kind() Kind        { return KindIn }
func (i In) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (i In) Key() string       { return i.Elem.Key() + " in " + i.List.Key() }

// IsNull is exempt from null propagation: it inspects its operand.
type IsNull struct {
	Operand Expr
}

func (i IsNull) Kind() Kind        { return KindIsNull }
func (i IsNull) Type() domain.Type { return domain.BooleanType() }
func (i IsNull) Key() string       { return "isnull(" + i.Operand.Key() + ")" }

// IsNotNull is exempt from null propagation: it inspects its operand.
type IsNotNull struct {
	Operand Expr
}

func (i IsNotNull) Kind() Kind        { return KindIsNotNull }
func (i IsNotNull) Type() domain.Type { return domain.BooleanType() }
func (i IsNotNull) Key() string       { return "isnotnull(" + i.Operand.Key() + ")" }

// Add is the polymorphic + operator; resolution happens at compile time from
// the static types of both operands.
type Add struct {
	BinaryOp
	T domain.Type
}

func (a Add) Kind() Kind        { return KindAdd }
func (a Add) Type() domain.Type { return a.T }
func (a Add) Key() string       { return a.Left.Key() + "+" + a.Right.Key() }

type Subtract struct {
	BinaryOp
	T domain.Type
}

func (s Subtract) Kind() Kind        { return KindSubtract }
func (s Subtract) Type() domain.Type { return s.T }
func (s Subtract) Key() string       { return s.Left.Key() + "-" + s.Right.Key() }

type Multiply struct {
	BinaryOp
	T domain.Type
}

func (m Multiply) Kind() Kind        { return KindMultiply }
func (m Multiply) Type() domain.Type { return m.T }
func (m Multiply) Key() string       { return m.Left.Key() + "*" + m.Right.Key() }

type Divide struct {
	BinaryOp
	T domain.Type
}

func (d Divide) Kind() Kind        { return KindDivide }
func (d Divide) Type() domain.Type { return d.T }
func (d Divide) Key() string       { return d.Left.Key() + "/" + d.Right.Key() }

// Labels lists a node's label names, sorted.
type Labels struct {
	Node Var
}

func (l Labels) Kind() Kind        { return KindLabels }
func (l Labels) Type() domain.Type { return domain.ListOf(domain.StringType()) }
func (l Labels) Key() string       { return "labels(" + l.Node.Key() + ")" }

// TypeOf yields a relationship's type name.
type TypeOf struct {
	Rel Var
}

func (t TypeOf) Kind() Kind        { return KindTypeOf }
func (t TypeOf) Type() domain.Type { return domain.StringType().AsNullable() }
func (t TypeOf) Key() string       { return "type(" + t.Rel.Key() + ")" }

// Keys lists an entity's present property keys, sorted.
type Keys struct {
	Entity Var
}

func (k Keys) Kind() Kind        { return KindKeys }
func (k Keys) Type() domain.Type { return domain.ListOf(domain.StringType()) }
func (k Keys) Key() string       { return "keys(" + k.Entity.Key() + ")" }

// Properties yields an entity's present properties as a map.
type Properties struct {
	Entity Var
}

func (p Properties) Kind() Kind        { return KindProperties }
func (p Properties) Type() domain.Type { return domain.MapOf(nil) }
func (p Properties) Key() string       { return "properties(" + p.Entity.Key() + ")" }

// Coalesce yields the first non-null operand.
type Coalesce struct {
	Operands []Expr
	T        domain.Type
}

func (c Coalesce) Kind() Kind        { return KindCoalesce }
func (c Coalesce) Type() domain.Type { return c.T }
func (c Coalesce) Key() string       { return "coalesce(" + joinKeys(c.Operands) + ")" }

// UnaryOp carries the single operand shared by the scalar functions.
type UnaryOp struct {
	Operand Expr
}

type ToString struct{ UnaryOp }

func (t ToString) Kind() Kind        { return KindToString }
func (t ToString) Type() domain.Type { return domain.StringType().AsNullable() }
func (t ToString) Key() string       { return "toString(" + t.Operand.Key() + ")" }

type ToUpper struct{ UnaryOp }

func (t ToUpper) Kind() Kind        { return KindToUpper }
func (t ToUpper) Type() domain.Type { return domain.StringType().AsNullable() }
func (t ToUpper) Key() string       { return "toUpper(" + t.Operand.Key() + ")" }

type ToLower struct{ UnaryOp }

func (t ToLower) Kind() Kind        { return KindToLower }
func (t ToLower) Type() domain.Type { return domain.StringType().AsNullable() }
func (t ToLower) Key() string       { return "toLower(" + t.Operand.Key() + ")" }

type Trim struct{ UnaryOp }

func (t Trim) Kind() Kind        { return KindTrim }
func (t Trim) Type() domain.Type { return domain.StringType().AsNullable() }
func (t Trim) Key() string       { return "trim(" + t.Operand.Key() + ")" }

type StartsWith struct{ BinaryOp }

func (s StartsWith) Kind() Kind        { return KindStartsWith }
func (s StartsWith) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (s StartsWith) Key() string       { return s.Left.Key() + " startsWith " + s.Right.Key() }

type EndsWith struct{ BinaryOp }

func (e EndsWith) Kind() Kind        { return KindEndsWith }
func (e EndsWith) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (e EndsWith) Key() string       { return e.Left.Key() + " endsWith " + e.Right.Key() }

type Contains struct{ BinaryOp }

func (c Contains) Kind() Kind        { return KindContains }
func (c Contains) Type() domain.Type { return domain.BooleanType().AsNullable() }
func (c Contains) Key() string       { return c.Left.Key() + " contains " + c.Right.Key() }

// Size yields the length of a list or string.
type Size struct{ UnaryOp }

func (s Size) Kind() Kind        { return KindSize }
func (s Size) Type() domain.Type { return domain.IntegerType().AsNullable() }
func (s Size) Key() string       { return "size(" + s.Operand.Key() + ")" }

// Owner extracts the variable an expression belongs to, if any: the node or
// relationship a property or flag is about.
func Owner(e Expr) (Var, bool) {
	switch x := e.(type) {
	case Var:
		return x, true
	case Property:
		if v, ok := x.Subject.(Var); ok {
			return v, true
		}
	case HasLabel:
		return x.Node, true
	case HasType:
		return x.Rel, true
	case StartNode:
		return x.Rel, true
	case EndNode:
		return x.Rel, true
	case IDOf:
		return x.Entity, true
	}
	return Var{}, false
}

func joinKeys(exprs []Expr) string {
	keys := make([]string, len(exprs))
	for i, e := range exprs {
		keys[i] = e.Key()
	}
	return strings.Join(keys, ",")
}
