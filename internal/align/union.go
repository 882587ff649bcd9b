package align

import (
	"fmt"

	"github.com/slategraph/slate/internal/domain"
	"github.com/slategraph/slate/internal/identifier"
	"github.com/slategraph/slate/internal/table"
)

// Union combines scans from distinct graphs into one. Each contributing scan
// is assigned a distinct tag and every identifier column it carries is
// rewritten with that tag, so ids stay globally unique without renumbering.
// Tag assignment is scoped to this call and not recorded anywhere.
//
// All scans must share the same variable and column layout; the first scan's
// header describes the result.
func Union(scans ...*Scan) (*Scan, error) {
	if len(scans) == 0 {
		return nil, fmt.Errorf("union: no scans")
	}
	first := scans[0]
	merged := first.Header
	for _, s := range scans[1:] {
		if s.Var != first.Var {
			return nil, fmt.Errorf("union: scans bind different variables %q and %q", first.Var, s.Var)
		}
		m, err := merged.Merge(s.Header)
		if err != nil {
			return nil, fmt.Errorf("union: %w", err)
		}
		merged = m
	}

	tagged := make([]*table.Table, len(scans))
	for i, s := range scans {
		t, err := retag(s.Table, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("union: tag scan %d: %w", i, err)
		}
		tagged[i] = t
	}

	unified, err := table.Concat(tagged...)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	return &Scan{Var: first.Var, Header: merged, Table: unified}, nil
}

// retag prefixes every identifier column (ids, relationship endpoints) with
// the graph tag.
func retag(t *table.Table, tag uint32) (*table.Table, error) {
	out := t
	for _, name := range t.ColumnNames() {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Type.Kind != domain.KindIdentifier {
			continue
		}
		mapped, err := out.WithColumnMapped(name, func(v any) any {
			id, ok := v.(identifier.Identifier)
			if !ok {
				return v
			}
			return identifier.WithTag(id, tag)
		})
		if err != nil {
			return nil, err
		}
		out = mapped
	}
	return out, nil
}
