package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Coordinator
	FieldConnID   = "conn_id"
	FieldStreamID = "stream_id"
	FieldIdentity = "identity"
	FieldRole     = "role"
	FieldTarget   = "target"
	FieldReason   = "reason"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
