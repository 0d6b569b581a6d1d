// Package appfs embeds the static assets shipped with the binaries:
// database migrations, email templates and AI prompt definitions.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* prompts/*.yaml
var FS embed.FS
