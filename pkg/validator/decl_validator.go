// Package validator checks entity table declarations against the tables that
// back them before alignment runs, so mapping mistakes surface as named
// errors instead of misaligned columns.
package validator

import (
	"fmt"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/table"
)

// DeclValidator validates table declarations against backing data.
type DeclValidator struct{}

// NewDeclValidator creates a new declaration validator.
func NewDeclValidator() *DeclValidator {
	return &DeclValidator{}
}

// ValidationError describes one declaration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating one declaration.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

func (r *ValidationResult) addError(field, format string, args ...any) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateNodeTable checks a node table declaration against its backing data.
func (v *DeclValidator) ValidateNodeTable(decl domain.NodeTable, data *table.Table) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}, Warnings: []ValidationError{}}

	v.checkIDColumn(&result, data, decl.IDColumn)
	for label, column := range decl.OptionalLabels {
		v.checkIndicatorColumn(&result, data, label, column)
	}
	v.checkProperties(&result, data, decl.Properties)

	return result
}

// ValidateRelationshipTable checks a relationship table declaration against
// its backing data.
func (v *DeclValidator) ValidateRelationshipTable(decl domain.RelationshipTable, data *table.Table) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}, Warnings: []ValidationError{}}

	v.checkIDColumn(&result, data, decl.IDColumn)
	v.checkIDColumn(&result, data, decl.SourceColumn)
	v.checkIDColumn(&result, data, decl.TargetColumn)
	for relType, column := range decl.OptionalTypes {
		v.checkIndicatorColumn(&result, data, relType, column)
	}
	v.checkProperties(&result, data, decl.Properties)

	return result
}

func (v *DeclValidator) checkIDColumn(result *ValidationResult, data *table.Table, column string) {
	if column == "" {
		result.addError(column, "id column not declared")
		return
	}
	col, err := data.Column(column)
	if err != nil {
		result.addError(column, "id column %q missing from table", column)
		return
	}
	for i, value := range col.Values {
		if _, ok := value.(int64); !ok {
			result.addError(column, "id column %q row %d holds %T, want integer", column, i, value)
			return
		}
	}
}

func (v *DeclValidator) checkIndicatorColumn(result *ValidationResult, data *table.Table, name, column string) {
	col, err := data.Column(column)
	if err != nil {
		result.addError(column, "indicator column %q for %q missing from table", column, name)
		return
	}
	if col.Type.Kind != domain.KindBoolean {
		result.addError(column, "indicator column %q for %q is %s, want boolean", column, name, col.Type)
		return
	}
	for _, value := range col.Values {
		if value == nil {
			result.addWarning(column, "indicator column %q carries nulls; null counts as false", column)
			break
		}
	}
}

func (v *DeclValidator) checkProperties(result *ValidationResult, data *table.Table, props map[string]domain.PropertyMapping) {
	for key, mapping := range props {
		col, err := data.Column(mapping.Column)
		if err != nil {
			result.addError(key, "property %q mapped to missing column %q", key, mapping.Column)
			continue
		}
		if _, err := domain.Join(col.Type, mapping.Type); err != nil {
			result.addError(key, "property %q: column type %s incompatible with declared %s", key, col.Type, mapping.Type)
		}
		for i, value := range col.Values {
			if value == nil {
				continue
			}
			if !domain.KindAccepts(mapping.Type.Kind, domain.ValueKind(value)) {
				result.addWarning(key, "property %q row %d holds %T, declared %s", key, i, value, mapping.Type)
				break
			}
		}
	}
}
