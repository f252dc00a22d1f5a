package records

import (
	"time"

	"github.com/google/uuid"

	"moviesetl/internal/schema"
)

// PersonFilmWork links a person to a film work in a role.
type PersonFilmWork struct {
	ID         uuid.UUID
	FilmWorkID uuid.UUID
	PersonID   uuid.UUID
	Role       string
	Created    time.Time
}

// PersonFilmWorkTable declares the person_film_work join table.
var PersonFilmWorkTable = schema.Table{
	Name: "PersonFilmWork",
	Columns: []schema.Column{
		{Name: "id", Source: "id", Kind: schema.KindUUID},
		{Name: "film_work_id", Source: "film_work_id", Kind: schema.KindUUID},
		{Name: "person_id", Source: "person_id", Kind: schema.KindUUID},
		{Name: "role", Source: "role", Kind: schema.KindText, Default: DefaultRole},
		{Name: "created", Source: "created_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
	},
	Parents: []string{"FilmWork", "Person"},
	Build: func(v []any) schema.Record {
		return PersonFilmWork{
			ID:         asUUID(v[0]),
			FilmWorkID: asUUID(v[1]),
			PersonID:   asUUID(v[2]),
			Role:       asString(v[3]),
			Created:    asTime(v[4]),
		}
	},
}

func (PersonFilmWork) Table() string    { return "PersonFilmWork" }
func (p PersonFilmWork) Key() uuid.UUID { return p.ID }
func (p PersonFilmWork) Values() []any {
	return []any{p.ID, p.FilmWorkID, p.PersonID, p.Role, p.Created}
}
