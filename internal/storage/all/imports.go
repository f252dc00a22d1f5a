// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// writer factories and DDL bootstrappers with the storage package:
//
//   - "postgres" (moviesetl/internal/storage/postgres)
//   - "sqlite"   (moviesetl/internal/storage/sqlite)
//
// Typical usage (in cmd/moviesetl or a test):
//
//	import _ "moviesetl/internal/storage/all"
//
//	w, err := storage.New(ctx, storage.Config{
//	    Kind:      "postgres",
//	    DSN:       cfg.TargetDSN(),
//	    Namespace: cfg.Schema,
//	    Policy:    storage.PolicyIgnore,
//	})
package all

import (
	_ "moviesetl/internal/storage/postgres"
	_ "moviesetl/internal/storage/sqlite"
)
