// Package prompts holds the stage prompt templates with workspace override support.
package prompts

import "embed"

//go:embed templates/*.md
var embeddedFS embed.FS
