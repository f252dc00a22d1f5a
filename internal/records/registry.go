package records

import "moviesetl/internal/schema"

// Registry returns the migrated tables in dependency order: referenced
// entities first, then the join tables.
func Registry() *schema.Registry {
	return schema.MustRegistry(
		GenreTable,
		PersonTable,
		FilmWorkTable,
		PersonFilmWorkTable,
		GenreFilmWorkTable,
	)
}
