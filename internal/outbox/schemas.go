package outbox

const healthRecordImportedSchema = `{
  "type": "object",
  "title": "HealthRecordImported",
  "properties": {
    "record_id": {"type": "string"},
    "record_type": {"type": "string", "enum": ["steps", "heart_rate", "distance", "active_calories", "total_calories", "exercise", "sleep"]},
    "source": {"type": "string"},
    "start_time": {"type": "string", "format": "date-time"},
    "end_time": {"type": "string", "format": "date-time"},
    "primary_value": {"type": "number", "exclusiveMinimum": 0},
    "unit": {"type": "string"},
    "imported_at": {"type": "string", "format": "date-time"}
  },
  "required": ["record_id", "record_type", "source", "start_time", "end_time", "primary_value", "unit", "imported_at"],
  "additionalProperties": false
}`
