package schema

import (
	"fmt"
	"strings"
)

// Registry is the ordered set of migrated tables. Order is dependency order:
// every table appears after all of its parents.
type Registry struct {
	tables []Table
	byName map[string]int
}

// NewRegistry validates the declarations and their order.
func NewRegistry(tables ...Table) (*Registry, error) {
	r := &Registry{
		tables: make([]Table, 0, len(tables)),
		byName: make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("schema: table %s registered twice", t.Name)
		}
		for _, p := range t.Parents {
			if _, ok := r.byName[p]; !ok {
				return nil, fmt.Errorf("schema: table %s references %s which is not registered before it", t.Name, p)
			}
		}
		r.byName[t.Name] = len(r.tables)
		r.tables = append(r.tables, t)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static declarations.
func MustRegistry(tables ...Table) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// Tables returns the tables in dependency order.
func (r *Registry) Tables() []Table {
	out := make([]Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// Lookup finds a table by registry name ("FilmWork") or source name
// ("film_work").
func (r *Registry) Lookup(name string) (Table, bool) {
	if i, ok := r.byName[name]; ok {
		return r.tables[i], true
	}
	for _, t := range r.tables {
		if t.SourceName() == strings.ToLower(name) {
			return t, true
		}
	}
	return Table{}, false
}

// Levels groups the tables so that every table's parents live in an earlier
// group. Tables of one group are independent of each other.
func (r *Registry) Levels() [][]Table {
	depth := make(map[string]int, len(r.tables))
	var levels [][]Table
	for _, t := range r.tables {
		d := 0
		for _, p := range t.Parents {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[t.Name] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], t)
	}
	return levels
}

// Subset returns a registry restricted to the named tables, keeping dependency
// order. Unless allowPartial is set, every parent of a selected table must be
// selected too.
func (r *Registry) Subset(names []string, allowPartial bool) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		t, ok := r.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("schema: unknown table %q", n)
		}
		want[t.Name] = struct{}{}
	}
	var out []Table
	for _, t := range r.tables {
		if _, ok := want[t.Name]; !ok {
			continue
		}
		if allowPartial {
			t.Parents = filterParents(t.Parents, want)
		} else {
			for _, p := range t.Parents {
				if _, ok := want[p]; !ok {
					return nil, fmt.Errorf("schema: table %s requires parent %s in the same run", t.Name, p)
				}
			}
		}
		out = append(out, t)
	}
	return NewRegistry(out...)
}

func filterParents(parents []string, keep map[string]struct{}) []string {
	var out []string
	for _, p := range parents {
		if _, ok := keep[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
