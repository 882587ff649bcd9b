package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/expr"
)

func nodeVar(name string) expr.Var {
	return expr.NewVar(name, domain.NodeType())
}

func buildNodeHeader(t *testing.T) *Header {
	t.Helper()
	n := nodeVar("n")
	b := NewBuilder()
	require.NoError(t, b.AddOpaqueField(n, "n"))
	require.NoError(t, b.AddProjectedExpr(expr.HasLabel{Node: n, Label: "Person"}, "n_hasLabel_Person"))
	require.NoError(t, b.AddProjectedExpr(expr.HasLabel{Node: n, Label: "Admin"}, "n_hasLabel_Admin"))
	require.NoError(t, b.AddProjectedExpr(
		expr.Property{Subject: n, PropKey: "name", T: domain.StringType().AsNullable()}, "n_prop_name"))
	require.NoError(t, b.AddProjectedExpr(
		expr.Property{Subject: n, PropKey: "age", T: domain.IntegerType().AsNullable()}, "n_prop_age"))
	return b.Build()
}

func TestColumnAndContains(t *testing.T) {
	h := buildNodeHeader(t)
	n := nodeVar("n")

	col, err := h.Column(n)
	require.NoError(t, err)
	assert.Equal(t, "n", col)

	// Lookup keys ignore the static type carried on the expression.
	col, err = h.Column(expr.Property{Subject: n, PropKey: "name", T: domain.StringType()})
	require.NoError(t, err)
	assert.Equal(t, "n_prop_name", col)

	assert.True(t, h.Contains(expr.HasLabel{Node: n, Label: "Admin"}))
	assert.False(t, h.Contains(expr.HasLabel{Node: n, Label: "Ghost"}))
}

func TestColumnUnbound(t *testing.T) {
	h := buildNodeHeader(t)
	_, err := h.Column(nodeVar("m"))
	assert.ErrorIs(t, err, ErrUnboundExpression)
}

func TestEntriesPreserveRegistrationOrder(t *testing.T) {
	h := buildNodeHeader(t)
	assert.Equal(t,
		[]string{"n", "n_hasLabel_Person", "n_hasLabel_Admin", "n_prop_name", "n_prop_age"},
		h.Columns())
}

func TestLabelsForSorted(t *testing.T) {
	h := buildNodeHeader(t)
	flags := h.LabelsFor("n")
	require.Len(t, flags, 2)
	assert.Equal(t, "Admin", flags[0].Label)
	assert.Equal(t, "Person", flags[1].Label)
	assert.Equal(t, "n_hasLabel_Admin", flags[0].Column)
	assert.Empty(t, h.LabelsFor("m"))
}

func TestPropertiesForSorted(t *testing.T) {
	h := buildNodeHeader(t)
	props := h.PropertiesFor("n")
	require.Len(t, props, 2)
	assert.Equal(t, "age", props[0].PropKey)
	assert.Equal(t, "name", props[1].PropKey)
}

func TestTypesForSorted(t *testing.T) {
	r := expr.NewVar("r", domain.RelationshipType())
	b := NewBuilder()
	require.NoError(t, b.AddOpaqueField(r, "r"))
	require.NoError(t, b.AddProjectedExpr(expr.HasType{Rel: r, RelType: "WROTE"}, "r_hasType_WROTE"))
	require.NoError(t, b.AddProjectedExpr(expr.HasType{Rel: r, RelType: "KNOWS"}, "r_hasType_KNOWS"))
	h := b.Build()

	flags := h.TypesFor("r")
	require.Len(t, flags, 2)
	assert.Equal(t, "KNOWS", flags[0].RelType)
	assert.Equal(t, "WROTE", flags[1].RelType)
}

func TestBuilderRejectsColumnReuse(t *testing.T) {
	n := nodeVar("n")
	b := NewBuilder()
	require.NoError(t, b.AddOpaqueField(n, "n"))
	err := b.AddProjectedExpr(expr.HasLabel{Node: n, Label: "Person"}, "n")
	assert.ErrorIs(t, err, ErrColumnConflict)
}

func TestBuilderTwoColumnsForOneExpression(t *testing.T) {
	n := nodeVar("n")
	b := NewBuilder()
	require.NoError(t, b.AddProjectedExpr(expr.HasLabel{Node: n, Label: "Person"}, "a"))
	err := b.AddProjectedExpr(expr.HasLabel{Node: n, Label: "Person"}, "b")
	assert.ErrorIs(t, err, ErrColumnConflict)
}

func TestMergeDisjoint(t *testing.T) {
	left := buildNodeHeader(t)

	r := expr.NewVar("r", domain.RelationshipType())
	b := NewBuilder()
	require.NoError(t, b.AddOpaqueField(r, "r"))
	require.NoError(t, b.AddProjectedExpr(expr.StartNode{Rel: r}, "r_source"))
	right := b.Build()

	merged, err := left.Merge(right)
	require.NoError(t, err)
	assert.Len(t, merged.Entries(), 7)
	assert.True(t, merged.Contains(nodeVar("n")))
	assert.True(t, merged.Contains(expr.StartNode{Rel: r}))
}

func TestMergeSharedEntryIsDeduplicated(t *testing.T) {
	left := buildNodeHeader(t)
	right := buildNodeHeader(t)
	merged, err := left.Merge(right)
	require.NoError(t, err)
	assert.Len(t, merged.Entries(), 5)
}

func TestMergeConflicts(t *testing.T) {
	n := nodeVar("n")

	b := NewBuilder()
	require.NoError(t, b.AddOpaqueField(n, "n"))
	left := b.Build()

	// Same expression, different column.
	b = NewBuilder()
	require.NoError(t, b.AddOpaqueField(n, "n_other"))
	_, err := left.Merge(b.Build())
	assert.ErrorIs(t, err, ErrColumnConflict)

	// Different expression, same column.
	b = NewBuilder()
	require.NoError(t, b.AddOpaqueField(nodeVar("m"), "n"))
	_, err = left.Merge(b.Build())
	assert.ErrorIs(t, err, ErrColumnConflict)
}

func TestColumnNameFor(t *testing.T) {
	n := nodeVar("n")
	r := expr.NewVar("r", domain.RelationshipType())

	assert.Equal(t, "n", ColumnNameFor(n))
	assert.Equal(t, "n_hasLabel_Person", ColumnNameFor(expr.HasLabel{Node: n, Label: "Person"}))
	assert.Equal(t, "r_hasType_KNOWS", ColumnNameFor(expr.HasType{Rel: r, RelType: "KNOWS"}))
	assert.Equal(t, "r_source", ColumnNameFor(expr.StartNode{Rel: r}))
	assert.Equal(t, "r_target", ColumnNameFor(expr.EndNode{Rel: r}))
	assert.Equal(t, "n_prop_name",
		ColumnNameFor(expr.Property{Subject: n, PropKey: "name", T: domain.StringType()}))
}

func TestColumnNameForSanitizes(t *testing.T) {
	n := nodeVar("n")
	name := ColumnNameFor(expr.HasLabel{Node: n, Label: "Mixed Case-Label"})
	assert.Equal(t, "n_hasLabel_Mixed_Case_Label", name)
}

func TestColumnNameForFallbackIsDeterministic(t *testing.T) {
	e := expr.Not{Operand: expr.TrueLiteral()}
	first := ColumnNameFor(e)
	assert.Equal(t, first, ColumnNameFor(e))
	assert.Regexp(t, `^expr_[0-9a-f]{8}$`, first)
}
