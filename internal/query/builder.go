package query

import (
	"fmt"
	"time"
)

// Clause is a storage where-clause: field name to value or operator map.
// A nil value means the field is null.
type Clause map[string]any

// Storage field names used as clause keys.
const (
	FieldRead             = "read"
	FieldCurrentlyReading = "currentlyReading"
	FieldGenre            = "genre"
	FieldAuthor           = "author"
	FieldPages            = "pages"
	FieldRating           = "rating"
	FieldTitle            = "title"
)

// Operators and combinators understood by storage implementations.
const (
	OpGte      = "gte"
	OpLte      = "lte"
	OpNot      = "not"
	OpEquals   = "equals"
	OpContains = "contains"
	OpMode     = "mode"

	ModeInsensitive = "insensitive"

	KeyAnd = "AND"
	KeyOr  = "OR"
)

// Order is a single-field ordering.
type Order struct {
	Field     SortField
	Direction SortOrder
}

// StorageQuery is the storage-facing projection of ParsedFilters. Absent
// filters leave the matching member nil.
type StorageQuery struct {
	Where   Clause
	OrderBy *Order
	Take    *int
	Skip    *int
}

// Builder maps ParsedFilters onto a StorageQuery. Now supplies the current
// year for month filters given without one.
type Builder struct {
	Now func() time.Time
}

var defaultBuilder = Builder{Now: time.Now}

// BuildQuery maps f onto a StorageQuery using the wall clock.
func BuildQuery(f ParsedFilters) StorageQuery {
	return defaultBuilder.Build(f)
}

// Build maps f onto a StorageQuery. Each present field yields exactly one
// clause; no filters means no where-clause at all.
func (b Builder) Build(f ParsedFilters) StorageQuery {
	var clauses []Clause

	if c := readStatusClause(f.ReadStatus); c != nil {
		clauses = append(clauses, c)
	}
	if f.Genre != "" {
		clauses = append(clauses, Clause{FieldGenre: f.Genre})
	}
	if f.Author != "" {
		clauses = append(clauses, Clause{FieldAuthor: map[string]any{OpContains: f.Author, OpMode: ModeInsensitive}})
	}
	if r := rangeOf(f.MinPages, f.MaxPages); r != nil {
		clauses = append(clauses, Clause{FieldPages: r})
	}
	if r := rangeOf(f.MinRating, f.MaxRating); r != nil {
		clauses = append(clauses, Clause{FieldRating: r})
	}
	if from, to, ok := b.dateRange(f.Year, f.Month); ok {
		clauses = append(clauses, Clause{FieldRead: map[string]any{OpGte: from, OpLte: to}})
	}

	q := StorageQuery{Where: mergeClauses(clauses)}
	if f.SortBy != "" {
		dir := f.SortOrder
		if dir == "" {
			dir = SortDesc
		}
		q.OrderBy = &Order{Field: f.SortBy, Direction: dir}
	}
	if f.Limit != nil {
		q.Take = intPtr(*f.Limit)
	}
	if f.Offset != nil {
		q.Skip = intPtr(*f.Offset)
	}
	return q
}

func readStatusClause(s ReadStatus) Clause {
	switch s {
	case ReadStatusUnread:
		return Clause{FieldRead: nil}
	case ReadStatusCompleted:
		return Clause{FieldRead: map[string]any{OpNot: nil}}
	case ReadStatusReading:
		return Clause{FieldCurrentlyReading: true}
	default:
		return nil
	}
}

func rangeOf(lo, hi *int) map[string]any {
	if lo == nil && hi == nil {
		return nil
	}
	r := map[string]any{}
	if lo != nil {
		r[OpGte] = *lo
	}
	if hi != nil {
		r[OpLte] = *hi
	}
	return r
}

// dateRange returns inclusive ISO date bounds. A month always ends on day
// 31; dates are compared as strings so the bound never rolls over.
func (b Builder) dateRange(year, month *int) (string, string, bool) {
	switch {
	case month != nil:
		y := b.now().Year()
		if year != nil {
			y = *year
		}
		return fmt.Sprintf("%04d-%02d-01", y, *month), fmt.Sprintf("%04d-%02d-31", y, *month), true
	case year != nil:
		return fmt.Sprintf("%04d-01-01", *year), fmt.Sprintf("%04d-12-31", *year), true
	default:
		return "", "", false
	}
}

func (b Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// mergeClauses flattens single-key clauses into one map, falling back to an
// AND when two clauses target the same field.
func mergeClauses(clauses []Clause) Clause {
	if len(clauses) == 0 {
		return nil
	}
	flat := Clause{}
	for _, c := range clauses {
		for k, v := range c {
			if _, dup := flat[k]; dup {
				return CombineAnd(clauses...)
			}
			flat[k] = v
		}
	}
	return flat
}

// CombineAnd joins clauses into a conjunction. No clauses yields an empty
// clause and a single clause is returned unchanged.
func CombineAnd(clauses ...Clause) Clause {
	return combine(KeyAnd, clauses)
}

// CombineOr joins clauses into a disjunction with the same identities as
// CombineAnd.
func CombineOr(clauses ...Clause) Clause {
	return combine(KeyOr, clauses)
}

func combine(key string, clauses []Clause) Clause {
	switch len(clauses) {
	case 0:
		return Clause{}
	case 1:
		return clauses[0]
	default:
		out := make([]Clause, len(clauses))
		copy(out, clauses)
		return Clause{key: out}
	}
}
