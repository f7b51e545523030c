// Package schemas embeds the JSON Schemas for sitroom's on-disk artifacts.
package schemas

import _ "embed"

// ReportCacheSchemaJSON describes the flat report cache file.
//
//go:embed report_cache.schema.json
var ReportCacheSchemaJSON string

// AdvisorPromptsSchemaJSON describes the advisor prompt definitions file.
//
//go:embed advisor_prompts.schema.json
var AdvisorPromptsSchemaJSON string
