// Package migrations embeds the goose migration scripts so the migrate
// command works from any working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
