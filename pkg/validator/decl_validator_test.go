package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/table"
)

func personsTable(t *testing.T) *table.Table {
	t.Helper()
	data := table.New(2)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1), int64(2)})))
	require.NoError(t, data.AddColumn("is_admin", table.NewColumn(domain.BooleanType(), []any{true, false})))
	require.NoError(t, data.AddColumn("name", table.NewColumn(domain.StringType(), []any{"ada", "bob"})))
	return data
}

func TestValidateNodeTableValid(t *testing.T) {
	decl := domain.NewNodeTable("persons", "id").
		WithImpliedLabels("Person").
		WithOptionalLabel("Admin", "is_admin").
		WithProperty("name", "name", domain.StringType())

	result := NewDeclValidator().ValidateNodeTable(decl, personsTable(t))
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateNodeTableMissingIDColumn(t *testing.T) {
	decl := domain.NewNodeTable("persons", "uid")
	result := NewDeclValidator().ValidateNodeTable(decl, personsTable(t))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "missing from table")
}

func TestValidateNodeTableNonIntegerID(t *testing.T) {
	data := table.New(1)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.StringType(), []any{"x"})))

	result := NewDeclValidator().ValidateNodeTable(domain.NewNodeTable("bad", "id"), data)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "want integer")
}

func TestValidateNodeTableBadIndicator(t *testing.T) {
	decl := domain.NewNodeTable("persons", "id").WithOptionalLabel("Admin", "name")
	result := NewDeclValidator().ValidateNodeTable(decl, personsTable(t))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "want boolean")
}

func TestValidateNodeTableNullIndicatorWarns(t *testing.T) {
	data := table.New(2)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1), int64(2)})))
	require.NoError(t, data.AddColumn("hot", table.NewColumn(domain.BooleanType().AsNullable(), []any{true, nil})))

	decl := domain.NewNodeTable("flagged", "id").WithOptionalLabel("Hot", "hot")
	result := NewDeclValidator().ValidateNodeTable(decl, data)
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "null counts as false")
}

func TestValidateNodeTableIncompatibleProperty(t *testing.T) {
	decl := domain.NewNodeTable("persons", "id").
		WithProperty("name", "name", domain.BooleanType())
	result := NewDeclValidator().ValidateNodeTable(decl, personsTable(t))
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "incompatible")
}

func TestValidateNodeTablePropertyValueMismatchWarns(t *testing.T) {
	data := table.New(1)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	// Column declared integer but actually holding a string value.
	require.NoError(t, data.AddColumn("v", table.NewColumn(domain.IntegerType(), []any{"oops"})))

	decl := domain.NewNodeTable("bad", "id").WithProperty("v", "v", domain.IntegerType())
	result := NewDeclValidator().ValidateNodeTable(decl, data)
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "declared INTEGER")
}

func TestValidateRelationshipTable(t *testing.T) {
	data := table.New(1)
	require.NoError(t, data.AddColumn("id", table.NewColumn(domain.IntegerType(), []any{int64(100)})))
	require.NoError(t, data.AddColumn("src", table.NewColumn(domain.IntegerType(), []any{int64(1)})))
	require.NoError(t, data.AddColumn("dst", table.NewColumn(domain.IntegerType(), []any{int64(2)})))

	decl := domain.NewRelationshipTable("knows", "id", "src", "dst").WithImpliedTypes("KNOWS")
	result := NewDeclValidator().ValidateRelationshipTable(decl, data)
	assert.True(t, result.IsValid)

	// Endpoint columns are validated like id columns.
	broken := domain.NewRelationshipTable("knows", "id", "missing", "dst")
	result = NewDeclValidator().ValidateRelationshipTable(broken, data)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "missing", result.Errors[0].Field)
}
