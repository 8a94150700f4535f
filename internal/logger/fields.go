package logger

// Standard field names for structured logging.
const (
	FieldComponent = "component"
	FieldOperation = "operation"

	// Snippet execution
	FieldRule     = "rule"
	FieldStage    = "stage"
	FieldAttempt  = "attempt"
	FieldSnippet  = "snippet"
	FieldFault    = "fault"
	FieldMode     = "mode"
	FieldDuration = "duration_ms"

	// Monitoring
	FieldIndicator = "indicator"
	FieldLabel     = "label"
	FieldScore     = "score"
	FieldRows      = "rows"
	FieldColumns   = "columns"

	// HTTP
	FieldMethod = "method"
	FieldPath   = "path"
	FieldStatus = "status"

	FieldError = "error"
	FieldCount = "count"
	FieldFile  = "file"
)
