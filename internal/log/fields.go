package log

const (
	FieldClientID = "client_id"
	FieldUsername = "username"
	FieldState    = "state"
	FieldAttempt  = "attempt"
	FieldLine     = "line"

	// HTTP
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldLatency   = "latency_ms"
)
