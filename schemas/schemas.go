// Package schemas embeds the JSON schemas for judge replies.
package schemas

import _ "embed"

// VerdictSchemaJSON is the schema for per-metric judge verdicts.
//
//go:embed verdict.schema.json
var VerdictSchemaJSON string

// ValidationSchemaJSON is the schema for binary proceed/deny verdicts.
//
//go:embed validation.schema.json
var ValidationSchemaJSON string
