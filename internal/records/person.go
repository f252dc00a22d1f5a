package records

import (
	"time"

	"github.com/google/uuid"

	"moviesetl/internal/schema"
)

// Person is anyone credited on a film work.
type Person struct {
	ID       uuid.UUID
	FullName string
	Created  time.Time
	Modified time.Time
}

// PersonTable declares the person table.
var PersonTable = schema.Table{
	Name: "Person",
	Columns: []schema.Column{
		{Name: "id", Source: "id", Kind: schema.KindUUID},
		{Name: "full_name", Source: "full_name", Kind: schema.KindText},
		{Name: "created", Source: "created_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
		{Name: "modified", Source: "updated_at", Kind: schema.KindTimestamp, Optional: true, Audit: true},
	},
	Build: func(v []any) schema.Record {
		return Person{
			ID:       asUUID(v[0]),
			FullName: asString(v[1]),
			Created:  asTime(v[2]),
			Modified: asTime(v[3]),
		}
	},
}

func (Person) Table() string    { return "Person" }
func (p Person) Key() uuid.UUID { return p.ID }
func (p Person) Values() []any  { return []any{p.ID, p.FullName, p.Created, p.Modified} }
