package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Relay
	FieldRoom      = "room"
	FieldSessionID = "session_id"
	FieldUsername  = "username"
	FieldCount     = "count"

	FieldService = "service"
	FieldSource  = "source"

	// Audit
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
