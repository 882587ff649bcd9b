package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slategraph/slate/internal/domain"
)

// Op is an engine-native column computation: a pure function from a table to
// one column. Compiled expressions are trees of Ops; evaluating an Op never
// mutates the table.
type Op interface {
	Eval(t *Table) (Column, error)
}

// ColRef reads an existing column.
type ColRef struct {
	Name string
}

func (o ColRef) Eval(t *Table) (Column, error) {
	return t.Column(o.Name)
}

// Lit produces a constant column.
type Lit struct {
	Value any
	T     domain.Type
}

func (o Lit) Eval(t *Table) (Column, error) {
	return ConstColumn(o.T, o.Value, t.RowCount()), nil
}

// NullLit produces an all-null column.
func NullLit() Lit {
	return Lit{Value: nil, T: domain.NullType()}
}

// Not negates a boolean column under three-valued logic.
type Not struct {
	Src Op
}

func (o Not) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		if b, ok := v.(bool); ok {
			values[i] = !b
		}
	}
	return Column{Type: domain.BooleanType().AsNullable(), Values: values}, nil
}

// AndN folds operands under three-valued conjunction: false dominates,
// unknown propagates otherwise.
type AndN struct {
	Ops []Op
}

func (o AndN) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Ops)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		result := any(true)
		for _, col := range cols {
			switch v := col.Values[i].(type) {
			case bool:
				if !v {
					result = false
				}
			default:
				if result != any(false) {
					result = nil
				}
			}
			if result == any(false) {
				break
			}
		}
		values[i] = result
	}
	return Column{Type: domain.BooleanType().AsNullable(), Values: values}, nil
}

// OrN folds operands under three-valued disjunction: true dominates, unknown
// propagates otherwise.
type OrN struct {
	Ops []Op
}

func (o OrN) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Ops)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		result := any(false)
		for _, col := range cols {
			switch v := col.Values[i].(type) {
			case bool:
				if v {
					result = true
				}
			default:
				if result != any(true) {
					result = nil
				}
			}
			if result == any(true) {
				break
			}
		}
		values[i] = result
	}
	return Column{Type: domain.BooleanType().AsNullable(), Values: values}, nil
}

// CmpKind selects the native comparison.
type CmpKind string

const (
	CmpEq CmpKind = "="
	CmpLt CmpKind = "<"
	CmpLe CmpKind = "<="
	CmpGt CmpKind = ">"
	CmpGe CmpKind = ">="
)

// Cmp is the engine's native comparison: null when either operand is null or
// the operand types are cross-incompatible.
type Cmp struct {
	Kind  CmpKind
	Left  Op
	Right Op
}

func (o Cmp) Eval(t *Table) (Column, error) {
	left, err := o.Left.Eval(t)
	if err != nil {
		return Column{}, err
	}
	right, err := o.Right.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		a, b := left.Values[i], right.Values[i]
		if o.Kind == CmpEq {
			values[i] = Equal(a, b)
			continue
		}
		cmp, ok := Order(a, b)
		if !ok {
			continue
		}
		switch o.Kind {
		case CmpLt:
			values[i] = cmp < 0
		case CmpLe:
			values[i] = cmp <= 0
		case CmpGt:
			values[i] = cmp > 0
		case CmpGe:
			values[i] = cmp >= 0
		}
	}
	return Column{Type: domain.BooleanType().AsNullable(), Values: values}, nil
}

// IsNullOp tests for null; the result is never null itself.
type IsNullOp struct {
	Src    Op
	Negate bool
}

func (o IsNullOp) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		values[i] = (v == nil) != o.Negate
	}
	return Column{Type: domain.BooleanType(), Values: values}, nil
}

// InOp is three-valued list membership: true on a match, false when every
// element compares false, unknown when the element or any candidate is
// unresolvable.
type InOp struct {
	Elem Op
	List Op
}

func (o InOp) Eval(t *Table) (Column, error) {
	elem, err := o.Elem.Eval(t)
	if err != nil {
		return Column{}, err
	}
	list, err := o.List.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		lv, ok := list.Values[i].([]any)
		if !ok {
			values[i] = nil
			continue
		}
		if len(lv) == 0 {
			values[i] = false
			continue
		}
		if elem.Values[i] == nil {
			values[i] = nil
			continue
		}
		result := any(false)
		for _, candidate := range lv {
			switch eq := Equal(elem.Values[i], candidate).(type) {
			case bool:
				if eq {
					result = true
				}
			default:
				if result != any(true) {
					result = nil
				}
			}
			if result == any(true) {
				break
			}
		}
		values[i] = result
	}
	return Column{Type: domain.BooleanType().AsNullable(), Values: values}, nil
}

// ListOf constructs a list per row from element operands.
type ListOf struct {
	Elems []Op
	T     domain.Type
}

func (o ListOf) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Elems)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = col.Values[i]
		}
		values[i] = row
	}
	return Column{Type: o.T, Values: values}, nil
}

// MapOf constructs a map per row from keyed operands.
type MapOf struct {
	Keys   []string
	Values []Op
	T      domain.Type
}

func (o MapOf) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Values)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		row := make(map[string]any, len(o.Keys))
		for j, key := range o.Keys {
			row[key] = cols[j].Values[i]
		}
		values[i] = row
	}
	return Column{Type: o.T, Values: values}, nil
}

// FieldGet reads a field out of a map-valued column, null when absent.
type FieldGet struct {
	Src   Op
	Field string
	T     domain.Type
}

func (o FieldGet) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		if m, ok := v.(map[string]any); ok {
			values[i] = m[o.Field]
		}
	}
	return Column{Type: o.T, Values: values}, nil
}

// TemporalField extracts a calendar field from a temporal column.
type TemporalField struct {
	Src   Op
	Field string
}

func (o TemporalField) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		ts, ok := v.(time.Time)
		if !ok {
			continue
		}
		switch o.Field {
		case "year":
			values[i] = int64(ts.Year())
		case "month":
			values[i] = int64(ts.Month())
		case "day":
			values[i] = int64(ts.Day())
		case "hour":
			values[i] = int64(ts.Hour())
		case "minute":
			values[i] = int64(ts.Minute())
		case "second":
			values[i] = int64(ts.Second())
		case "epochMillis":
			values[i] = ts.UnixMilli()
		default:
			return Column{}, fmt.Errorf("unknown temporal field %q", o.Field)
		}
	}
	return Column{Type: domain.IntegerType().AsNullable(), Values: values}, nil
}

// ConcatLists concatenates two list columns element-wise.
type ConcatLists struct {
	Left  Op
	Right Op
	T     domain.Type
}

func (o ConcatLists) Eval(t *Table) (Column, error) {
	left, err := o.Left.Eval(t)
	if err != nil {
		return Column{}, err
	}
	right, err := o.Right.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		lv, lok := left.Values[i].([]any)
		rv, rok := right.Values[i].([]any)
		if !lok || !rok {
			continue
		}
		merged := make([]any, 0, len(lv)+len(rv))
		merged = append(merged, lv...)
		merged = append(merged, rv...)
		values[i] = merged
	}
	return Column{Type: o.T, Values: values}, nil
}

// AppendElem appends a scalar to a list column element-wise.
type AppendElem struct {
	List Op
	Elem Op
	T    domain.Type
}

func (o AppendElem) Eval(t *Table) (Column, error) {
	list, err := o.List.Eval(t)
	if err != nil {
		return Column{}, err
	}
	elem, err := o.Elem.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		lv, ok := list.Values[i].([]any)
		if !ok {
			continue
		}
		appended := make([]any, 0, len(lv)+1)
		appended = append(appended, lv...)
		appended = append(appended, elem.Values[i])
		values[i] = appended
	}
	return Column{Type: o.T, Values: values}, nil
}

// ToText coerces scalars to their text form, null staying null.
type ToText struct {
	Src Op
}

func (o ToText) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		s, err := formatText(v)
		if err != nil {
			return Column{}, err
		}
		values[i] = s
	}
	return Column{Type: domain.StringType().AsNullable(), Values: values}, nil
}

func formatText(v any) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case string:
		return n, nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(n), nil
	case time.Time:
		return n.Format(time.RFC3339), nil
	case time.Duration:
		return n.String(), nil
	}
	return nil, fmt.Errorf("cannot render %T as text", v)
}

// ConcatText concatenates two text columns element-wise.
type ConcatText struct {
	Left  Op
	Right Op
}

func (o ConcatText) Eval(t *Table) (Column, error) {
	left, err := o.Left.Eval(t)
	if err != nil {
		return Column{}, err
	}
	right, err := o.Right.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		lv, lok := left.Values[i].(string)
		rv, rok := right.Values[i].(string)
		if !lok || !rok {
			continue
		}
		values[i] = lv + rv
	}
	return Column{Type: domain.StringType().AsNullable(), Values: values}, nil
}

// ArithKind selects the native arithmetic operator.
type ArithKind string

const (
	ArithAdd ArithKind = "+"
	ArithSub ArithKind = "-"
	ArithMul ArithKind = "*"
	ArithDiv ArithKind = "/"
)

// Arith is native arithmetic over numeric and temporal operands.
type Arith struct {
	Kind  ArithKind
	Left  Op
	Right Op
	T     domain.Type
}

func (o Arith) Eval(t *Table) (Column, error) {
	left, err := o.Left.Eval(t)
	if err != nil {
		return Column{}, err
	}
	right, err := o.Right.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		a, b := left.Values[i], right.Values[i]
		if a == nil || b == nil {
			continue
		}
		v, err := applyArith(o.Kind, a, b)
		if err != nil {
			return Column{}, err
		}
		values[i] = v
	}
	return Column{Type: o.T, Values: values}, nil
}

func applyArith(kind ArithKind, a, b any) (any, error) {
	if ai, aok := a.(int64); aok {
		if bi, bok := b.(int64); bok {
			switch kind {
			case ArithAdd:
				return ai + bi, nil
			case ArithSub:
				return ai - bi, nil
			case ArithMul:
				return ai * bi, nil
			case ArithDiv:
				if bi == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return ai / bi, nil
			}
		}
	}
	if af, aok := domain.AsFloat(a); aok {
		if bf, bok := domain.AsFloat(b); bok {
			switch kind {
			case ArithAdd:
				return af + bf, nil
			case ArithSub:
				return af - bf, nil
			case ArithMul:
				return af * bf, nil
			case ArithDiv:
				if bf == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return af / bf, nil
			}
		}
	}

	switch av := a.(type) {
	case time.Time:
		switch bv := b.(type) {
		case time.Duration:
			switch kind {
			case ArithAdd:
				return av.Add(bv), nil
			case ArithSub:
				return av.Add(-bv), nil
			}
		case time.Time:
			if kind == ArithSub {
				return av.Sub(bv), nil
			}
		}
	case time.Duration:
		switch bv := b.(type) {
		case time.Duration:
			switch kind {
			case ArithAdd:
				return av + bv, nil
			case ArithSub:
				return av - bv, nil
			}
		case time.Time:
			if kind == ArithAdd {
				return bv.Add(av), nil
			}
		}
	}
	return nil, fmt.Errorf("cannot apply %s to %T and %T", kind, a, b)
}

// PredKind selects a string predicate.
type PredKind string

const (
	PredStartsWith PredKind = "STARTS_WITH"
	PredEndsWith   PredKind = "ENDS_WITH"
	PredContains   PredKind = "CONTAINS"
)

// StringPred evaluates a string predicate, null when either side is not text.
type StringPred struct {
	Kind  PredKind
	Left  Op
	Right Op
}

func (o StringPred) Eval(t *Table) (Column, error) {
	left, err := o.Left.Eval(t)
	if err != nil {
		return Column{}, err
	}
	right, err := o.Right.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		lv, lok := left.Values[i].(string)
		rv, rok := right.Values[i].(string)
		if !lok || !rok {
			continue
		}
		switch o.Kind {
		case PredStartsWith:
			values[i] = strings.HasPrefix(lv, rv)
		case PredEndsWith:
			values[i] = strings.HasSuffix(lv, rv)
		case PredContains:
			values[i] = strings.Contains(lv, rv)
		}
	}
	return Column{Type: domain.BooleanType().AsNullable(), Values: values}, nil
}

// FnKind selects a scalar string function.
type FnKind string

const (
	FnUpper FnKind = "UPPER"
	FnLower FnKind = "LOWER"
	FnTrim  FnKind = "TRIM"
)

// StringFn applies a scalar string function, null passing through.
type StringFn struct {
	Kind FnKind
	Src  Op
}

func (o StringFn) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch o.Kind {
		case FnUpper:
			values[i] = strings.ToUpper(s)
		case FnLower:
			values[i] = strings.ToLower(s)
		case FnTrim:
			values[i] = strings.TrimSpace(s)
		}
	}
	return Column{Type: domain.StringType().AsNullable(), Values: values}, nil
}

// CoalesceOp yields the first non-null operand per row.
type CoalesceOp struct {
	Ops []Op
	T   domain.Type
}

func (o CoalesceOp) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Ops)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		for _, col := range cols {
			if col.Values[i] != nil {
				values[i] = col.Values[i]
				break
			}
		}
	}
	return Column{Type: o.T, Values: values}, nil
}

// SizeOp yields the length of a list or string column.
type SizeOp struct {
	Src Op
}

func (o SizeOp) Eval(t *Table) (Column, error) {
	src, err := o.Src.Eval(t)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, src.Len())
	for i, v := range src.Values {
		switch n := v.(type) {
		case []any:
			values[i] = int64(len(n))
		case string:
			values[i] = int64(len([]rune(n)))
		}
	}
	return Column{Type: domain.IntegerType().AsNullable(), Values: values}, nil
}

// LabelList builds, per row, the sorted-by-caller list of names whose flag
// column is true.
type LabelList struct {
	Names []string
	Flags []Op
}

func (o LabelList) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Flags)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		row := make([]any, 0, len(o.Names))
		for j, name := range o.Names {
			if b, ok := cols[j].Values[i].(bool); ok && b {
				row = append(row, name)
			}
		}
		values[i] = row
	}
	return Column{Type: domain.ListOf(domain.StringType()), Values: values}, nil
}

// FlagName yields, per row, the first name whose flag column is true, null
// when none is.
type FlagName struct {
	Names []string
	Flags []Op
}

func (o FlagName) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Flags)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		for j, name := range o.Names {
			if b, ok := cols[j].Values[i].(bool); ok && b {
				values[i] = name
				break
			}
		}
	}
	return Column{Type: domain.StringType().AsNullable(), Values: values}, nil
}

// PresentKeys builds, per row, the list of keys whose value operand is
// non-null.
type PresentKeys struct {
	Keys   []string
	Values []Op
}

func (o PresentKeys) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Values)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		row := make([]any, 0, len(o.Keys))
		for j, key := range o.Keys {
			if cols[j].Values[i] != nil {
				row = append(row, key)
			}
		}
		values[i] = row
	}
	return Column{Type: domain.ListOf(domain.StringType()), Values: values}, nil
}

// PropertyMap builds, per row, the map of keys to non-null values.
type PropertyMap struct {
	Keys   []string
	Values []Op
}

func (o PropertyMap) Eval(t *Table) (Column, error) {
	cols, err := evalAll(t, o.Values)
	if err != nil {
		return Column{}, err
	}
	values := make([]any, t.RowCount())
	for i := range values {
		row := make(map[string]any, len(o.Keys))
		for j, key := range o.Keys {
			if cols[j].Values[i] != nil {
				row[key] = cols[j].Values[i]
			}
		}
		values[i] = row
	}
	return Column{Type: domain.MapOf(nil), Values: values}, nil
}

func evalAll(t *Table, ops []Op) ([]Column, error) {
	cols := make([]Column, len(ops))
	for i, op := range ops {
		col, err := op.Eval(t)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}
