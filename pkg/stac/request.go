package stac

import (
	"fmt"
	"strconv"
	"strings"
)

// SortDirection is the direction of one sort field.
type SortDirection string

const (
	// SortAsc sorts ascending.
	SortAsc SortDirection = "asc"

	// SortDesc sorts descending.
	SortDesc SortDirection = "desc"
)

// SortField is one element of a sort specification.
type SortField struct {
	Field     string
	Direction SortDirection
}

// ParseSortBy parses an OGC-style sortby value ("+title,-updated" or
// "title,-updated") into sort fields. A leading "+" or no prefix means
// ascending, "-" means descending.
func ParseSortBy(sortby string) ([]SortField, error) {
	if strings.TrimSpace(sortby) == "" {
		return nil, nil
	}

	var fields []SortField
	for _, part := range strings.Split(sortby, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		dir := SortAsc
		switch part[0] {
		case '-':
			dir = SortDesc
			part = part[1:]
		case '+':
			part = part[1:]
		}
		if part == "" {
			return nil, fmt.Errorf("sortby: empty field name")
		}

		fields = append(fields, SortField{Field: part, Direction: dir})
	}

	return fields, nil
}

// SearchRequest holds the caller-supplied collection-search parameters.
// It is constructed once per incoming call and never mutated by the
// federation core.
type SearchRequest struct {
	// BBox is a bounding box of 4 or 6 numbers, nil when absent.
	BBox []float64

	// Datetime is an RFC 3339 instant or interval; open-ended intervals
	// ("../2024-01-01T00:00:00Z") are allowed. Empty when absent.
	Datetime string

	// Query is the free-text query (the "q" parameter).
	Query string

	// Filter is a filter expression in the language named by FilterLang.
	Filter     string
	FilterLang string

	// Fields lists fields to include or exclude ("-" prefix excludes).
	Fields []string

	// SortBy is the requested sort specification, empty for the default order.
	SortBy []SortField

	// Limit is the requested page size. Zero means "apply the default".
	Limit int
}

// ParseBBox parses a comma-separated bounding box of 4 or 6 numbers.
func ParseBBox(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return nil, fmt.Errorf("bbox must have 4 or 6 numbers, got %d", len(parts))
	}

	bbox := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox element %d: %w", i, err)
		}
		bbox[i] = v
	}

	return bbox, nil
}

// SortBySpec renders the sort specification back into OGC sortby syntax
// so it can be forwarded to upstreams.
func SortBySpec(fields []SortField) string {
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		if f.Direction == SortDesc {
			parts[i] = "-" + f.Field
		} else {
			parts[i] = f.Field
		}
	}
	return strings.Join(parts, ",")
}
