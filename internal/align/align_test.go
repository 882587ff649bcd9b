package align

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/expr"
	"github.com/slategraph/slate/internal/header"
	"github.com/slategraph/slate/internal/identifier"
	"github.com/slategraph/slate/internal/table"
)

func personsInput(t *testing.T) NodeInput {
	t.Helper()
	decl := domain.NewNodeTable("persons", "id").
		WithImpliedLabels("Person").
		WithOptionalLabel("Admin", "is_admin").
		WithProperty("name", "name", domain.StringType()).
		WithProperty("age", "age", domain.IntegerType())

	data := table.New(2)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1), int64(2)})))
	require.NoError(t, data.AddColumn("is_admin", table.NewColumn(domain.BooleanType(), []any{true, false})))
	require.NoError(t, data.AddColumn("name", table.NewColumn(domain.StringType(), []any{"ada", "bob"})))
	require.NoError(t, data.AddColumn("age", table.NewColumn(domain.IntegerType(), []any{int64(36), int64(2)})))
	return NodeInput{Decl: decl, Data: data}
}

func robotsInput(t *testing.T) NodeInput {
	t.Helper()
	decl := domain.NewNodeTable("robots", "id").
		WithImpliedLabels("Robot").
		WithProperty("name", "name", domain.StringType())

	data := table.New(1)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(10)})))
	require.NoError(t, data.AddColumn("name", table.NewColumn(domain.StringType(), []any{"r2"})))
	return NodeInput{Decl: decl, Data: data}
}

func columnValues(t *testing.T, scan *Scan, name string) []any {
	t.Helper()
	col, err := scan.Table.Column(name)
	require.NoError(t, err)
	return col.Values
}

func TestAlignNodesUnifiesTables(t *testing.T) {
	scan, err := AlignNodes(context.Background(), "n", []NodeInput{personsInput(t), robotsInput(t)})
	require.NoError(t, err)

	// Row count is the sum of the inputs; rows are never merged.
	assert.Equal(t, 3, scan.Table.RowCount())
	assert.Equal(t, "n", scan.Var)

	assert.Equal(t, []string{
		"n",
		"n_hasLabel_Admin", "n_hasLabel_Person", "n_hasLabel_Robot",
		"n_prop_age", "n_prop_name",
	}, scan.Table.ColumnNames())

	ids := columnValues(t, scan, "n")
	assert.Equal(t, []any{identifier.Encode(1), identifier.Encode(2), identifier.Encode(10)}, ids)

	// Label flags are exact true/false for every row.
	assert.Equal(t, []any{true, false, false}, columnValues(t, scan, "n_hasLabel_Admin"))
	assert.Equal(t, []any{true, true, false}, columnValues(t, scan, "n_hasLabel_Person"))
	assert.Equal(t, []any{false, false, true}, columnValues(t, scan, "n_hasLabel_Robot"))

	// A property missing from a table is null for that table's rows.
	assert.Equal(t, []any{int64(36), int64(2), nil}, columnValues(t, scan, "n_prop_age"))
	assert.Equal(t, []any{"ada", "bob", "r2"}, columnValues(t, scan, "n_prop_name"))
}

func TestAlignNodesHeaderTypes(t *testing.T) {
	scan, err := AlignNodes(context.Background(), "n", []NodeInput{personsInput(t), robotsInput(t)})
	require.NoError(t, err)

	n := expr.NewVar("n", domain.NodeType())
	props := scan.Header.PropertiesFor("n")
	require.Len(t, props, 2)
	assert.Equal(t, "age", props[0].PropKey)
	assert.Equal(t, domain.IntegerType().AsNullable(), props[0].Expr.T)
	assert.Equal(t, "name", props[1].PropKey)
	assert.Equal(t, domain.StringType(), props[1].Expr.T)

	flags := scan.Header.LabelsFor("n")
	require.Len(t, flags, 3)
	assert.Equal(t, []string{"Admin", "Person", "Robot"},
		[]string{flags[0].Label, flags[1].Label, flags[2].Label})

	col, err := scan.Header.Column(n)
	require.NoError(t, err)
	assert.Equal(t, "n", col)
}

func TestAlignNodesHeaderGolden(t *testing.T) {
	scan, err := AlignNodes(context.Background(), "n", []NodeInput{personsInput(t), robotsInput(t)})
	require.NoError(t, err)

	var sb strings.Builder
	for _, e := range scan.Header.Entries() {
		fmt.Fprintf(&sb, "%s|%s|%s|%s\n", e.Kind, e.Column, e.Expr.Key(), e.Expr.Type())
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "node_header", []byte(sb.String()))
}

func TestAlignNodesLabelFilterDropsTables(t *testing.T) {
	scan, err := AlignNodes(context.Background(), "n",
		[]NodeInput{personsInput(t), robotsInput(t)}, WithLabelFilter("Person"))
	require.NoError(t, err)

	// robots never mentions Person, so only the persons rows survive.
	assert.Equal(t, 2, scan.Table.RowCount())
	flags := scan.Header.LabelsFor("n")
	require.Len(t, flags, 1)
	assert.Equal(t, "Person", flags[0].Label)
}

func TestAlignNodesLabelFilterFiltersRows(t *testing.T) {
	scan, err := AlignNodes(context.Background(), "n",
		[]NodeInput{personsInput(t), robotsInput(t)}, WithLabelFilter("Admin"))
	require.NoError(t, err)

	// Admin is optional on persons: only the indicator-true row survives.
	assert.Equal(t, 1, scan.Table.RowCount())
	assert.Equal(t, []any{"ada"}, columnValues(t, scan, "n_prop_name"))
	assert.Equal(t, []any{true}, columnValues(t, scan, "n_hasLabel_Admin"))
}

func TestAlignNodesLabelFilterKeepsFullPropertySet(t *testing.T) {
	persons := domain.NewNodeTable("persons", "id").
		WithImpliedLabels("Person").
		WithProperty("score", "score", domain.IntegerType())
	personsData := table.New(1)
	require.NoError(t, personsData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, personsData.AddColumn("score", table.NewColumn(domain.IntegerType(), []any{int64(7)})))

	robots := domain.NewNodeTable("robots", "id").
		WithImpliedLabels("Robot").
		WithProperty("score", "score", domain.FloatType()).
		WithProperty("model", "model", domain.StringType())
	robotsData := table.New(1)
	require.NoError(t, robotsData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(10)})))
	require.NoError(t, robotsData.AddColumn("score", table.NewColumn(domain.FloatType(), []any{0.5})))
	require.NoError(t, robotsData.AddColumn("model", table.NewColumn(domain.StringType(), []any{"r2"})))

	scan, err := AlignNodes(context.Background(), "n",
		[]NodeInput{{Decl: persons, Data: personsData}, {Decl: robots, Data: robotsData}},
		WithLabelFilter("Person"))
	require.NoError(t, err)

	// The filter narrows the rows, never the property layout: a property
	// declared only by the excluded table still gets its (all-null) column,
	// and widening still sees the excluded table's declaration.
	assert.Equal(t, 1, scan.Table.RowCount())
	assert.Equal(t, []string{"n", "n_hasLabel_Person", "n_prop_model", "n_prop_score"},
		scan.Table.ColumnNames())
	assert.Equal(t, []any{nil}, columnValues(t, scan, "n_prop_model"))

	score, err := scan.Table.Column("n_prop_score")
	require.NoError(t, err)
	assert.Equal(t, domain.KindFloat, score.Type.Kind)
	assert.Equal(t, []any{7.0}, score.Values)
}

func TestAlignRelationshipsTypeFilterKeepsFullPropertySet(t *testing.T) {
	likes := domain.NewRelationshipTable("likes", "id", "src", "dst").
		WithImpliedTypes("LIKES").
		WithProperty("weight", "weight", domain.FloatType())
	likesData := table.New(1)
	require.NoError(t, likesData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(200)})))
	require.NoError(t, likesData.AddColumn("src", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, likesData.AddColumn("dst", table.NewColumn(domain.IntegerType(), []any{int64(2)})))
	require.NoError(t, likesData.AddColumn("weight", table.NewColumn(domain.FloatType(), []any{0.9})))

	scan, err := AlignRelationships(context.Background(), "r",
		[]RelationshipInput{knowsInput(t), {Decl: likes, Data: likesData}},
		WithTypeFilter("KNOWS"))
	require.NoError(t, err)

	assert.Equal(t, 2, scan.Table.RowCount())
	assert.Equal(t, []string{"r", "r_source", "r_target", "r_hasType_KNOWS", "r_prop_since", "r_prop_weight"},
		scan.Table.ColumnNames())
	assert.Equal(t, []any{nil, nil}, columnValues(t, scan, "r_prop_weight"))
}

func TestAlignNodesFilterMatchingNoTable(t *testing.T) {
	scan, err := AlignNodes(context.Background(), "n",
		[]NodeInput{personsInput(t), robotsInput(t)}, WithLabelFilter("Ghost"))
	require.NoError(t, err)

	// No table mentions the label: an empty scan, but with the table
	// carrying every column the header describes.
	assert.Equal(t, 0, scan.Table.RowCount())
	assert.Equal(t, scan.Header.Columns(), scan.Table.ColumnNames())
	for _, name := range scan.Header.Columns() {
		assert.True(t, scan.Table.HasColumn(name), "column %q", name)
	}
}

func TestAlignRelationshipsFilterMatchingNoTable(t *testing.T) {
	scan, err := AlignRelationships(context.Background(), "r",
		[]RelationshipInput{knowsInput(t)}, WithTypeFilter("BLOCKED"))
	require.NoError(t, err)

	assert.Equal(t, 0, scan.Table.RowCount())
	assert.Equal(t, scan.Header.Columns(), scan.Table.ColumnNames())
}

func TestAlignOptionsLeaveFilterArgumentsUntouched(t *testing.T) {
	decl := domain.NewNodeTable("both", "id").WithImpliedLabels("Zeta", "Alpha")
	data := table.New(1)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1)})))

	filter := []string{"Zeta", "Alpha"}
	_, err := AlignNodes(context.Background(), "n",
		[]NodeInput{{Decl: decl, Data: data}}, WithLabelFilter(filter...))
	require.NoError(t, err)

	// The header sorts label flags; the caller's slice keeps its order.
	assert.Equal(t, []string{"Zeta", "Alpha"}, filter)
}

func TestAlignNodesNullIndicatorCountsAsFalse(t *testing.T) {
	decl := domain.NewNodeTable("flagged", "id").WithOptionalLabel("Hot", "hot")
	data := table.New(3)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1), int64(2), int64(3)})))
	require.NoError(t, data.AddColumn("hot", table.NewColumn(domain.BooleanType().AsNullable(), []any{true, nil, false})))

	scan, err := AlignNodes(context.Background(), "n", []NodeInput{{Decl: decl, Data: data}})
	require.NoError(t, err)
	assert.Equal(t, []any{true, false, false}, columnValues(t, scan, "n_hasLabel_Hot"))
}

func TestAlignNodesWidensNumericProperties(t *testing.T) {
	a := domain.NewNodeTable("ints", "id").
		WithImpliedLabels("X").
		WithProperty("score", "score", domain.IntegerType())
	aData := table.New(1)
	require.NoError(t, aData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, aData.AddColumn("score", table.NewColumn(domain.IntegerType(), []any{int64(7)})))

	b := domain.NewNodeTable("floats", "id").
		WithImpliedLabels("X").
		WithProperty("score", "score", domain.FloatType())
	bData := table.New(1)
	require.NoError(t, bData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(2)})))
	require.NoError(t, bData.AddColumn("score", table.NewColumn(domain.FloatType(), []any{1.5})))

	scan, err := AlignNodes(context.Background(), "n",
		[]NodeInput{{Decl: a, Data: aData}, {Decl: b, Data: bData}})
	require.NoError(t, err)

	col, err := scan.Table.Column("n_prop_score")
	require.NoError(t, err)
	assert.Equal(t, domain.KindFloat, col.Type.Kind)
	// Integer values are cast into the widened float column.
	assert.Equal(t, []any{7.0, 1.5}, col.Values)
}

func TestAlignNodesWidensListElements(t *testing.T) {
	a := domain.NewNodeTable("int_lists", "id").
		WithProperty("tags", "tags", domain.ListOf(domain.IntegerType()))
	aData := table.New(1)
	require.NoError(t, aData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, aData.AddColumn("tags", table.NewColumn(domain.ListOf(domain.IntegerType()),
		[]any{[]any{int64(1), int64(2)}})))

	b := domain.NewNodeTable("float_lists", "id").
		WithProperty("tags", "tags", domain.ListOf(domain.FloatType()))
	bData := table.New(1)
	require.NoError(t, bData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(2)})))
	require.NoError(t, bData.AddColumn("tags", table.NewColumn(domain.ListOf(domain.FloatType()),
		[]any{[]any{0.5}})))

	scan, err := AlignNodes(context.Background(), "n",
		[]NodeInput{{Decl: a, Data: aData}, {Decl: b, Data: bData}})
	require.NoError(t, err)

	col, err := scan.Table.Column("n_prop_tags")
	require.NoError(t, err)
	assert.Equal(t, domain.KindList, col.Type.Kind)
	assert.Equal(t, domain.KindFloat, col.Type.ElemType().Kind)
	// Integer elements are cast into the widened element type.
	assert.Equal(t, []any{[]any{1.0, 2.0}, []any{0.5}}, col.Values)
}

func TestAlignNodesSchemaConflict(t *testing.T) {
	a := domain.NewNodeTable("strs", "id").WithProperty("v", "v", domain.StringType())
	aData := table.New(1)
	require.NoError(t, aData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, aData.AddColumn("v", table.NewColumn(domain.StringType(), []any{"x"})))

	b := domain.NewNodeTable("bools", "id").WithProperty("v", "v", domain.BooleanType())
	bData := table.New(1)
	require.NoError(t, bData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(2)})))
	require.NoError(t, bData.AddColumn("v", table.NewColumn(domain.BooleanType(), []any{true})))

	_, err := AlignNodes(context.Background(), "n",
		[]NodeInput{{Decl: a, Data: aData}, {Decl: b, Data: bData}})
	assert.ErrorIs(t, err, ErrSchemaConflict)
}

func TestAlignNodesRejectsNonIntegerIDs(t *testing.T) {
	decl := domain.NewNodeTable("bad", "id")
	data := table.New(1)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.StringType(), []any{"oops"})))

	_, err := AlignNodes(context.Background(), "n", []NodeInput{{Decl: decl, Data: data}})
	assert.ErrorContains(t, err, "expected integer")
}

func TestAlignNodesEmptyInput(t *testing.T) {
	_, err := AlignNodes(context.Background(), "n", nil)
	assert.Error(t, err)
}

func knowsInput(t *testing.T) RelationshipInput {
	t.Helper()
	decl := domain.NewRelationshipTable("knows", "id", "src", "dst").
		WithImpliedTypes("KNOWS").
		WithProperty("since", "since", domain.IntegerType())

	data := table.New(2)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(100), int64(101)})))
	require.NoError(t, data.AddColumn("src", table.NewColumn(domain.IntegerType(), []any{int64(1), int64(2)})))
	require.NoError(t, data.AddColumn("dst", table.NewColumn(domain.IntegerType(), []any{int64(2), int64(1)})))
	require.NoError(t, data.AddColumn("since", table.NewColumn(domain.IntegerType(), []any{int64(2019), int64(2021)})))
	return RelationshipInput{Decl: decl, Data: data}
}

func TestAlignRelationships(t *testing.T) {
	scan, err := AlignRelationships(context.Background(), "r", []RelationshipInput{knowsInput(t)})
	require.NoError(t, err)

	assert.Equal(t, []string{"r", "r_source", "r_target", "r_hasType_KNOWS", "r_prop_since"},
		scan.Table.ColumnNames())
	assert.Equal(t, []any{identifier.Encode(1), identifier.Encode(2)}, columnValues(t, scan, "r_source"))
	assert.Equal(t, []any{identifier.Encode(2), identifier.Encode(1)}, columnValues(t, scan, "r_target"))
	assert.Equal(t, []any{true, true}, columnValues(t, scan, "r_hasType_KNOWS"))

	r := expr.NewVar("r", domain.RelationshipType())
	col, err := scan.Header.Column(expr.StartNode{Rel: r})
	require.NoError(t, err)
	assert.Equal(t, "r_source", col)

	flags := scan.Header.TypesFor("r")
	require.Len(t, flags, 1)
	assert.Equal(t, "KNOWS", flags[0].RelType)
}

func TestAlignRelationshipsTypeFilter(t *testing.T) {
	likes := domain.NewRelationshipTable("likes", "id", "src", "dst").WithImpliedTypes("LIKES")
	likesData := table.New(1)
	require.NoError(t, likesData.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(200)})))
	require.NoError(t, likesData.AddColumn("src", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, likesData.AddColumn("dst", table.NewColumn(domain.IntegerType(), []any{int64(2)})))

	scan, err := AlignRelationships(context.Background(), "r",
		[]RelationshipInput{knowsInput(t), {Decl: likes, Data: likesData}},
		WithTypeFilter("KNOWS"))
	require.NoError(t, err)

	assert.Equal(t, 2, scan.Table.RowCount())
	flags := scan.Header.TypesFor("r")
	require.Len(t, flags, 1)
	assert.Equal(t, "KNOWS", flags[0].RelType)
}

func alignSingle(t *testing.T, name string, rawIDs ...int64) *Scan {
	t.Helper()
	decl := domain.NewNodeTable(name, "id").
		WithImpliedLabels("Person").
		WithProperty("name", "name", domain.StringType())
	data := table.New(len(rawIDs))
	ids := make([]any, len(rawIDs))
	names := make([]any, len(rawIDs))
	for i, raw := range rawIDs {
		ids[i] = raw
		names[i] = fmt.Sprintf("p%d", raw)
	}
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), ids)))
	require.NoError(t, data.AddColumn("name", table.NewColumn(domain.StringType(), names)))

	scan, err := AlignNodes(context.Background(), "n", []NodeInput{{Decl: decl, Data: data}})
	require.NoError(t, err)
	return scan
}

func TestUnionTagsIdentifiers(t *testing.T) {
	left := alignSingle(t, "graph_a", 1, 2)
	right := alignSingle(t, "graph_b", 1) // same raw id as graph_a

	union, err := Union(left, right)
	require.NoError(t, err)
	assert.Equal(t, 3, union.Table.RowCount())

	ids := columnValues(t, union, "n")
	want := []any{
		identifier.WithTag(identifier.Encode(1), 0),
		identifier.WithTag(identifier.Encode(2), 0),
		identifier.WithTag(identifier.Encode(1), 1),
	}
	assert.Equal(t, want, ids)

	// Identical raw ids from different graphs stay distinct.
	assert.False(t, identifier.Equal(
		ids[0].(identifier.Identifier), ids[2].(identifier.Identifier)))
}

func TestUnionRetagsEveryIdentifierColumn(t *testing.T) {
	relScan, err := AlignRelationships(context.Background(), "r", []RelationshipInput{knowsInput(t)})
	require.NoError(t, err)

	union, err := Union(relScan)
	require.NoError(t, err)

	src := columnValues(t, union, "r_source")
	assert.Equal(t, identifier.WithTag(identifier.Encode(1), 0), src[0])
	// Non-identifier columns pass through untouched.
	assert.Equal(t, []any{int64(2019), int64(2021)}, columnValues(t, union, "r_prop_since"))
}

func TestUnionDifferentVariables(t *testing.T) {
	left := alignSingle(t, "graph_a", 1)
	right := alignSingle(t, "graph_b", 2)
	right.Var = "m"
	_, err := Union(left, right)
	assert.Error(t, err)
}

func TestUnionMergeConflict(t *testing.T) {
	left := alignSingle(t, "graph_a", 1)
	right := alignSingle(t, "graph_b", 2)

	// Rebuild the right header with the variable bound to a different column.
	b := header.NewBuilder()
	require.NoError(t, b.AddOpaqueField(expr.NewVar("n", domain.NodeType()), "elsewhere"))
	right.Header = b.Build()

	_, err := Union(left, right)
	assert.ErrorIs(t, err, header.ErrColumnConflict)
}
