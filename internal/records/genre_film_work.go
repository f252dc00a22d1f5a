package records

import (
	"time"

	"github.com/google/uuid"

	"moviesetl/internal/schema"
)

// GenreFilmWork links a genre to a film work.
type GenreFilmWork struct {
	ID         uuid.UUID
	FilmWorkID uuid.UUID
	GenreID    uuid.UUID
	Created    time.Time
}

// GenreFilmWorkTable declares the genre_film_work join table.
var GenreFilmWorkTable = schema.Table{
	Name: "GenreFilmWork",
	Columns: []schema.Column{
		{Name: "id", Source: "id", Kind: schema.KindUUID},
		{Name: "film_work_id", Source: "film_work_id", Kind: schema.KindUUID},
		{Name: "genre_id", Source: "genre_id", Kind: schema.KindUUID},
		{Name: "created", Source: "created_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
	},
	Parents: []string{"FilmWork", "Genre"},
	Build: func(v []any) schema.Record {
		return GenreFilmWork{
			ID:         asUUID(v[0]),
			FilmWorkID: asUUID(v[1]),
			GenreID:    asUUID(v[2]),
			Created:    asTime(v[3]),
		}
	},
}

func (GenreFilmWork) Table() string    { return "GenreFilmWork" }
func (g GenreFilmWork) Key() uuid.UUID { return g.ID }
func (g GenreFilmWork) Values() []any  { return []any{g.ID, g.FilmWorkID, g.GenreID, g.Created} }
