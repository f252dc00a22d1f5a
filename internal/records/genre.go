package records

import (
	"time"

	"github.com/google/uuid"

	"moviesetl/internal/schema"
)

// Genre is a film genre.
type Genre struct {
	ID          uuid.UUID
	Name        string
	Description string
	Created     time.Time
	Modified    time.Time
}

// GenreTable declares the genre table.
var GenreTable = schema.Table{
	Name: "Genre",
	Columns: []schema.Column{
		{Name: "id", Source: "id", Kind: schema.KindUUID},
		{Name: "name", Source: "name", Kind: schema.KindText},
		{Name: "description", Source: "description", Kind: schema.KindText, Default: DefaultDescription},
		{Name: "created", Source: "created_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
		{Name: "modified", Source: "updated_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
	},
	Build: func(v []any) schema.Record {
		return Genre{
			ID:          asUUID(v[0]),
			Name:        asString(v[1]),
			Description: asString(v[2]),
			Created:     asTime(v[3]),
			Modified:    asTime(v[4]),
		}
	},
}

func (Genre) Table() string    { return "Genre" }
func (g Genre) Key() uuid.UUID { return g.ID }
func (g Genre) Values() []any  { return []any{g.ID, g.Name, g.Description, g.Created, g.Modified} }
