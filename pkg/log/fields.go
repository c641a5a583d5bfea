package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldNickname = "nickname"

	// Realtime
	FieldSessionID = "session_id"
	FieldRoomID    = "room_id"
	FieldClientID  = "client_id"
	FieldMsgType   = "msg_type"

	// Service
	FieldService = "service"
)
