package templates

import "embed"

// Built-in email templates, one <id>.tmpl per handle.
//
//go:embed files/*.tmpl
var builtin embed.FS
