package outbox

import "example.com/fitlog/internal/events"

const entryCreatedSchema = `{
  "type": "object",
  "title": "EntryCreated",
  "properties": {
    "entry_id": {"type": "string"},
    "type": {"type": "string", "enum": ["activity", "weight"]},
    "timestamp": {"type": "string", "format": "date-time"},
    "text": {"type": "string"},
    "weight": {"type": "number"},
    "name": {"type": "string"},
    "reps": {"type": "integer", "minimum": 0}
  },
  "required": ["entry_id", "type", "timestamp"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.EntryCreatedType: {
		Schema: entryCreatedSchema,
	},
}
