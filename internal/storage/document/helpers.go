package document

import (
	"encoding/json"
	"fmt"
	"strings"

	v1 "github.com/strata-lab/project-strata/internal/api/v1"
	"github.com/strata-lab/project-strata/internal/core/source"
)

var allowedOps = map[string]struct{}{"=": {}, ">=": {}, "<": {}}

// schemaMismatch classifies a row decode failure. The returned error wraps
// source.ErrSchemaMismatch so errors.Is can identify the failure class.
func schemaMismatch(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", source.ErrSchemaMismatch, stage, err)
}

// buildScanQuery appends the spec's conjunctive filters to a base query.
// Fields are resolved through a whitelist and operators through allowedOps,
// so a QuerySpec can never inject SQL. The spec's TimeRange, when set, is
// translated to bounds on timeColumn.
func buildScanQuery(base string, spec source.QuerySpec, columns map[string]string, timeColumn, orderBy string) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(base)

	var args []interface{}
	for _, f := range spec.Filters {
		column, ok := columns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter field %q", f.Field)
		}
		if _, ok := allowedOps[f.Op]; !ok {
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, " AND %s %s $%d", column, f.Op, len(args))
	}

	if spec.TimeRange != nil && timeColumn != "" {
		if !spec.TimeRange.Start.IsZero() {
			args = append(args, spec.TimeRange.Start)
			fmt.Fprintf(&sb, " AND %s >= $%d", timeColumn, len(args))
		}
		if !spec.TimeRange.End.IsZero() {
			args = append(args, spec.TimeRange.End)
			fmt.Fprintf(&sb, " AND %s < $%d", timeColumn, len(args))
		}
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)
	return sb.String(), args, nil
}

// marshalAttributes serializes an entity's attribute document.
func marshalAttributes(ent *v1.Entity) ([]byte, error) {
	attrs := ent.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity attributes: %w", err)
	}
	return data, nil
}

// marshalItems serializes a transaction's line items document.
func marshalItems(tx *v1.Transaction) ([]byte, error) {
	data, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction items: %w", err)
	}
	return data, nil
}

// wantsAttributes reports whether a projection asks for the attribute blob.
// An empty projection means "all fields".
func wantsAttributes(projection []string) bool {
	if len(projection) == 0 {
		return true
	}
	for _, field := range projection {
		if field == "attributes" {
			return true
		}
	}
	return false
}
