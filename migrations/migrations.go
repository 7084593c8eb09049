// Package migrations embeds the schema for every supported database driver.
// Files follow golang-migrate naming: NNNNNN_name.up.sql / NNNNNN_name.down.sql.
package migrations

import "embed"

//go:embed sqlite/*.sql mysql/*.sql
var FS embed.FS
