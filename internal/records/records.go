// Package records declares the five migrated entities of the movies catalogue.
//
// Every entity is a plain immutable struct plus a schema.Table declaration
// whose column order matches the struct's Values order and the persisted
// column order of the target table.
package records

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied by the row mapper when the source value is NULL.
const (
	DefaultDescription = ""
	DefaultRating      = 0.0
	DefaultFilmType    = "movie"
	DefaultRole        = "actor"
)

// The helpers below unpack values that the mapper has already coerced to the
// declared column kind. A nil value only reaches nullable columns.

func asUUID(v any) uuid.UUID {
	id, _ := v.(uuid.UUID)
	return id
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asTimePtr(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}

func ptrValue[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
