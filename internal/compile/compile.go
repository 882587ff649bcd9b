// Package compile lowers typed expression trees onto column operations
// against a table governed by a record header. Compilation is a pure
// function: the header, table, and parameters are read, never written, so
// repeated calls are referentially transparent.
//
// Dispatch over expression shape is closed-world: every variant the tree can
// carry has an explicit case, and anything unrecognized fails with
// ErrNotImplemented naming the expression. Falling through to an approximate
// translation would corrupt query results silently, so it is forbidden.
package compile

import (
	"errors"
	"fmt"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/expr"
	"github.com/slategraph/slate/internal/header"
	"github.com/slategraph/slate/internal/table"
)

var (
	// ErrNotImplemented signals an expression shape the compiler has no case
	// for.
	ErrNotImplemented = errors.New("expression not supported")
	// ErrUnsupportedOperand signals an operand type combination outside the
	// polymorphic operator's resolution table.
	ErrUnsupportedOperand = errors.New("unsupported operand combination")
)

// Params resolves parameter references during compilation.
type Params map[string]any

// Compile lowers an expression into an engine column operation over tbl's
// columns as described by hdr.
func Compile(e expr.Expr, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	// A sub-expression statically typed as always-null compiles to a null
	// column without inspecting operands. IS [NOT] NULL are the only
	// operators that look through their argument instead.
	if e.Type().IsNullOnly() {
		switch e.Kind() {
		case expr.KindIsNull, expr.KindIsNotNull:
		default:
			return table.NullLit(), nil
		}
	}

	switch x := e.(type) {
	case expr.Var:
		col, err := hdr.Column(x)
		if err != nil {
			return nil, err
		}
		return table.ColRef{Name: col}, nil

	case expr.Param:
		value, ok := params[x.Name]
		if !ok {
			return nil, fmt.Errorf("parameter %q not bound", x.Name)
		}
		return table.Lit{Value: value, T: x.T}, nil

	case expr.Literal:
		return table.Lit{Value: x.Value, T: x.T}, nil

	case expr.ListLit:
		elems, err := compileAll(x.Elems, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.ListOf{Elems: elems, T: x.T}, nil

	case expr.MapLit:
		keys := make([]string, len(x.Entries))
		values := make([]table.Op, len(x.Entries))
		for i, entry := range x.Entries {
			op, err := Compile(entry.Value, hdr, tbl, params)
			if err != nil {
				return nil, err
			}
			keys[i] = entry.Key
			values[i] = op
		}
		return table.MapOf{Keys: keys, Values: values, T: x.T}, nil

	case expr.Property:
		return compileProperty(x, hdr, tbl, params)

	case expr.HasLabel:
		if !hdr.Contains(x) {
			// A label outside the unified label set holds for no row.
			return table.Lit{Value: false, T: domain.BooleanType()}, nil
		}
		col, err := hdr.Column(x)
		if err != nil {
			return nil, err
		}
		return table.ColRef{Name: col}, nil

	case expr.HasType:
		if !hdr.Contains(x) {
			return table.Lit{Value: false, T: domain.BooleanType()}, nil
		}
		col, err := hdr.Column(x)
		if err != nil {
			return nil, err
		}
		return table.ColRef{Name: col}, nil

	case expr.StartNode:
		col, err := hdr.Column(x)
		if err != nil {
			return nil, err
		}
		return table.ColRef{Name: col}, nil

	case expr.EndNode:
		col, err := hdr.Column(x)
		if err != nil {
			return nil, err
		}
		return table.ColRef{Name: col}, nil

	case expr.IDOf:
		col, err := hdr.Column(x.Entity)
		if err != nil {
			return nil, err
		}
		return table.ColRef{Name: col}, nil

	case expr.Not:
		op, err := Compile(x.Operand, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.Not{Src: op}, nil

	case expr.Ands:
		return compileFold(x.Operands, hdr, tbl, params, true)

	case expr.Ors:
		return compileFold(x.Operands, hdr, tbl, params, false)

	case expr.Equals:
		return compileCmp(table.CmpEq, x.BinaryOp, hdr, tbl, params)
	case expr.LessThan:
		return compileCmp(table.CmpLt, x.BinaryOp, hdr, tbl, params)
	case expr.LessThanEq:
		return compileCmp(table.CmpLe, x.BinaryOp, hdr, tbl, params)
	case expr.GreaterThan:
		return compileCmp(table.CmpGt, x.BinaryOp, hdr, tbl, params)
	case expr.GreaterThanEq:
		return compileCmp(table.CmpGe, x.BinaryOp, hdr, tbl, params)

	case expr.In:
		return compileIn(x, hdr, tbl, params)

	case expr.IsNull:
		if x.Operand.Type().IsNullOnly() {
			return table.Lit{Value: true, T: domain.BooleanType()}, nil
		}
		op, err := Compile(x.Operand, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.IsNullOp{Src: op}, nil

	case expr.IsNotNull:
		if x.Operand.Type().IsNullOnly() {
			return table.Lit{Value: false, T: domain.BooleanType()}, nil
		}
		op, err := Compile(x.Operand, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.IsNullOp{Src: op, Negate: true}, nil

	case expr.Add:
		return compileAdd(x, hdr, tbl, params)

	case expr.Subtract:
		return compileNativeArith(table.ArithSub, x.BinaryOp, x.T, hdr, tbl, params)
	case expr.Multiply:
		return compileNativeArith(table.ArithMul, x.BinaryOp, x.T, hdr, tbl, params)
	case expr.Divide:
		return compileNativeArith(table.ArithDiv, x.BinaryOp, x.T, hdr, tbl, params)

	case expr.Labels:
		flags := hdr.LabelsFor(x.Node.Name)
		names := make([]string, len(flags))
		ops := make([]table.Op, len(flags))
		for i, f := range flags {
			names[i] = f.Label
			ops[i] = table.ColRef{Name: f.Column}
		}
		return table.LabelList{Names: names, Flags: ops}, nil

	case expr.TypeOf:
		flags := hdr.TypesFor(x.Rel.Name)
		names := make([]string, len(flags))
		ops := make([]table.Op, len(flags))
		for i, f := range flags {
			names[i] = f.RelType
			ops[i] = table.ColRef{Name: f.Column}
		}
		return table.FlagName{Names: names, Flags: ops}, nil

	case expr.Keys:
		keys, ops := propertyOps(hdr, tbl, x.Entity.Name)
		return table.PresentKeys{Keys: keys, Values: ops}, nil

	case expr.Properties:
		keys, ops := propertyOps(hdr, tbl, x.Entity.Name)
		return table.PropertyMap{Keys: keys, Values: ops}, nil

	case expr.Coalesce:
		ops, err := compileAll(x.Operands, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.CoalesceOp{Ops: ops, T: x.T}, nil

	case expr.ToString:
		op, err := Compile(x.Operand, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.ToText{Src: op}, nil

	case expr.ToUpper:
		return compileStringFn(table.FnUpper, x.Operand, hdr, tbl, params)
	case expr.ToLower:
		return compileStringFn(table.FnLower, x.Operand, hdr, tbl, params)
	case expr.Trim:
		return compileStringFn(table.FnTrim, x.Operand, hdr, tbl, params)

	case expr.StartsWith:
		return compileStringPred(table.PredStartsWith, x.BinaryOp, hdr, tbl, params)
	case expr.EndsWith:
		return compileStringPred(table.PredEndsWith, x.BinaryOp, hdr, tbl, params)
	case expr.Contains:
		return compileStringPred(table.PredContains, x.BinaryOp, hdr, tbl, params)

	case expr.Size:
		op, err := Compile(x.Operand, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.SizeOp{Src: op}, nil
	}

	return nil, fmt.Errorf("%s %q: %w", e.Kind(), e.Key(), ErrNotImplemented)
}

func compileAll(exprs []expr.Expr, hdr *header.Header, tbl *table.Table, params Params) ([]table.Op, error) {
	ops := make([]table.Op, len(exprs))
	for i, e := range exprs {
		op, err := Compile(e, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return ops, nil
}

// compileProperty dispatches property access by the subject's static type:
// map field lookup, temporal field accessor, or entity property column via
// the header. A header miss, or a column missing from this particular scan,
// resolves to null: the property exists on other scans only.
func compileProperty(p expr.Property, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	subjectType := p.Subject.Type()
	switch subjectType.Kind {
	case domain.KindMap:
		if _, ok := subjectType.Fields[p.PropKey]; !ok && subjectType.Fields != nil {
			return table.NullLit(), nil
		}
		src, err := Compile(p.Subject, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.FieldGet{Src: src, Field: p.PropKey, T: p.T}, nil

	case domain.KindTemporal:
		src, err := Compile(p.Subject, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		return table.TemporalField{Src: src, Field: p.PropKey}, nil

	case domain.KindNode, domain.KindRelationship:
		if !hdr.Contains(p) {
			return table.NullLit(), nil
		}
		col, err := hdr.Column(p)
		if err != nil {
			return nil, err
		}
		if !tbl.HasColumn(col) {
			return table.NullLit(), nil
		}
		return table.ColRef{Name: col}, nil
	}
	return nil, fmt.Errorf("property access on %s %q: %w", subjectType, p.Key(), ErrNotImplemented)
}

// compileFold lowers ANDS/ORS, folding literal true/false operands away so
// the emitted operation short-circuits the way three-valued logic allows:
// a literal false dominates a conjunction, a literal true a disjunction.
func compileFold(operands []expr.Expr, hdr *header.Header, tbl *table.Table, params Params, conjunction bool) (table.Op, error) {
	identity := conjunction
	dominant := !conjunction

	var kept []table.Op
	for _, operand := range operands {
		op, err := Compile(operand, hdr, tbl, params)
		if err != nil {
			return nil, err
		}
		if lit, ok := op.(table.Lit); ok {
			if b, isBool := lit.Value.(bool); isBool {
				if b == dominant {
					return table.Lit{Value: dominant, T: domain.BooleanType()}, nil
				}
				continue // identity element, drop it
			}
		}
		kept = append(kept, op)
	}
	if len(kept) == 0 {
		return table.Lit{Value: identity, T: domain.BooleanType()}, nil
	}
	if len(kept) == 1 {
		return kept[0], nil
	}
	if conjunction {
		return table.AndN{Ops: kept}, nil
	}
	return table.OrN{Ops: kept}, nil
}

func compileCmp(kind table.CmpKind, b expr.BinaryOp, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	left, err := Compile(b.Left, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	right, err := Compile(b.Right, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	// The engine's native comparison already yields null for null or
	// cross-incompatible operands; no extra null checks on top.
	return table.Cmp{Kind: kind, Left: left, Right: right}, nil
}

func compileIn(in expr.In, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	staticallyEmpty := false
	if lst, ok := in.List.(expr.ListLit); ok && len(lst.Elems) == 0 {
		staticallyEmpty = true
	}

	if in.Elem.Type().IsNullOnly() {
		// null IN [] is false; with any other right-hand side the
		// membership is unknown.
		if staticallyEmpty {
			return table.Lit{Value: false, T: domain.BooleanType()}, nil
		}
		return table.NullLit(), nil
	}
	if staticallyEmpty {
		return table.Lit{Value: false, T: domain.BooleanType()}, nil
	}

	elem, err := Compile(in.Elem, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	list, err := Compile(in.List, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	return table.InOp{Elem: elem, List: list}, nil
}

// compileAdd resolves the polymorphic + by the static types of both operands.
// Uncovered combinations are a compile-time error, never a runtime surprise.
func compileAdd(add expr.Add, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	lt := add.Left.Type()
	rt := add.Right.Type()

	left, err := Compile(add.Left, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	right, err := Compile(add.Right, hdr, tbl, params)
	if err != nil {
		return nil, err
	}

	switch {
	case lt.Kind == domain.KindList && rt.Kind == domain.KindList:
		le, re := lt.ElemType(), rt.ElemType()
		if le.SameShape(re) || le.Kind == domain.KindNothing || re.Kind == domain.KindNothing {
			return table.ConcatLists{Left: left, Right: right, T: add.T}, nil
		}
		return nil, fmt.Errorf("cannot concatenate %s and %s: %w", lt, rt, ErrUnsupportedOperand)

	case lt.Kind == domain.KindList:
		elem := lt.ElemType()
		if elem.SameShape(rt) || elem.Kind == domain.KindNothing {
			return table.AppendElem{List: left, Elem: right, T: add.T}, nil
		}
		return nil, fmt.Errorf("cannot append %s to %s: %w", rt, lt, ErrUnsupportedOperand)

	case lt.Kind == domain.KindString && isNumeric(rt):
		return table.ConcatText{Left: left, Right: table.ToText{Src: right}}, nil
	case isNumeric(lt) && rt.Kind == domain.KindString:
		return table.ConcatText{Left: table.ToText{Src: left}, Right: right}, nil
	case lt.Kind == domain.KindString && rt.Kind == domain.KindString:
		return table.ConcatText{Left: left, Right: right}, nil

	case isAddable(lt) && isAddable(rt):
		// Numeric and temporal pairs fall through to native addition.
		return table.Arith{Kind: table.ArithAdd, Left: left, Right: right, T: add.T}, nil
	}

	return nil, fmt.Errorf("cannot add %s and %s: %w", lt, rt, ErrUnsupportedOperand)
}

func compileNativeArith(kind table.ArithKind, b expr.BinaryOp, t domain.Type, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	lt, rt := b.Left.Type(), b.Right.Type()
	if !isAddable(lt) || !isAddable(rt) {
		return nil, fmt.Errorf("cannot apply %s to %s and %s: %w", kind, lt, rt, ErrUnsupportedOperand)
	}
	left, err := Compile(b.Left, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	right, err := Compile(b.Right, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	return table.Arith{Kind: kind, Left: left, Right: right, T: t}, nil
}

func compileStringFn(kind table.FnKind, operand expr.Expr, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	op, err := Compile(operand, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	return table.StringFn{Kind: kind, Src: op}, nil
}

func compileStringPred(kind table.PredKind, b expr.BinaryOp, hdr *header.Header, tbl *table.Table, params Params) (table.Op, error) {
	left, err := Compile(b.Left, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	right, err := Compile(b.Right, hdr, tbl, params)
	if err != nil {
		return nil, err
	}
	return table.StringPred{Kind: kind, Left: left, Right: right}, nil
}

// propertyOps builds the sorted (key, column op) lists behind keys() and
// properties(). Entries whose column is missing from this scan contribute
// null, so a property present on other scans only simply never shows up.
func propertyOps(hdr *header.Header, tbl *table.Table, entityVar string) ([]string, []table.Op) {
	entries := hdr.PropertiesFor(entityVar)
	keys := make([]string, len(entries))
	ops := make([]table.Op, len(entries))
	for i, entry := range entries {
		keys[i] = entry.PropKey
		if tbl.HasColumn(entry.Column) {
			ops[i] = table.ColRef{Name: entry.Column}
		} else {
			ops[i] = table.NullLit()
		}
	}
	return keys, ops
}

func isNumeric(t domain.Type) bool {
	return t.Kind == domain.KindInteger || t.Kind == domain.KindFloat
}

func isAddable(t domain.Type) bool {
	switch t.Kind {
	case domain.KindInteger, domain.KindFloat, domain.KindTemporal, domain.KindDuration:
		return true
	}
	return false
}
