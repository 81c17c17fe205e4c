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
	FieldConnID   = "conn_id"
	FieldRoomID   = "room_id"
	FieldTargetID = "target_id"
	FieldSenderID = "sender_id"
	FieldEvent    = "event"
	FieldInstance = "instance_id"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
