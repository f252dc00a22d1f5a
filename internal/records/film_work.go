package records

import (
	"time"

	"github.com/google/uuid"

	"moviesetl/internal/schema"
)

// FilmWork is a movie or a TV show.
type FilmWork struct {
	ID           uuid.UUID
	Title        string
	Description  string
	CreationDate *time.Time
	FilePath     *string
	Rating       float64
	Type         string
	Created      time.Time
	Modified     time.Time
}

// FilmWorkTable declares the film_work table.
var FilmWorkTable = schema.Table{
	Name: "FilmWork",
	Columns: []schema.Column{
		{Name: "id", Source: "id", Kind: schema.KindUUID},
		{Name: "title", Source: "title", Kind: schema.KindText},
		{Name: "description", Source: "description", Kind: schema.KindText, Default: DefaultDescription},
		{Name: "creation_date", Source: "creation_date", Kind: schema.KindDate, Nullable: true},
		{Name: "file_path", Source: "file_path", Kind: schema.KindText, Nullable: true, Optional: true},
		{Name: "rating", Source: "rating", Kind: schema.KindFloat, Default: DefaultRating},
		{Name: "type", Source: "type", Kind: schema.KindText, Default: DefaultFilmType},
		{Name: "created", Source: "created_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
		{Name: "modified", Source: "updated_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
	},
	Build: func(v []any) schema.Record {
		return FilmWork{
			ID:           asUUID(v[0]),
			Title:        asString(v[1]),
			Description:  asString(v[2]),
			CreationDate: asTimePtr(v[3]),
			FilePath:     asStringPtr(v[4]),
			Rating:       asFloat(v[5]),
			Type:         asString(v[6]),
			Created:      asTime(v[7]),
			Modified:     asTime(v[8]),
		}
	},
}

func (FilmWork) Table() string    { return "FilmWork" }
func (f FilmWork) Key() uuid.UUID { return f.ID }

func (f FilmWork) Values() []any {
	return []any{
		f.ID, f.Title, f.Description, ptrValue(f.CreationDate), ptrValue(f.FilePath),
		f.Rating, f.Type, f.Created, f.Modified,
	}
}
