package domain

// SessionDisconnected is emitted by the session manager when a session
// is torn down, so room presence cleanup can run. Fire-and-observe: the
// emitter does not wait for consumers.
type SessionDisconnected struct {
	UserID    int64
	SessionID string
	RoomID    int64 // last-known room, 0 if none
}
