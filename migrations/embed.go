// Package migrations holds the goose SQL migrations of the Postgres backend.
// They are compiled into cmd/migrate and the integration tests.
package migrations

import "embed"

// FS is the set of numbered *.sql migrations, for goose.NewProvider.
//
//go:embed *.sql
var FS embed.FS
