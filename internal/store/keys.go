package store

import "fmt"

// Redis key patterns:
// ws:user:{user_id}              STRING<SessionInfo JSON>  - canonical session per user
// ws:session:{session_id}        STRING<user_id>           - reverse index for disconnects
// ws:room:{room_id}:users        SET<user_id>              - room presence set
// ws:room:{room_id}:user:{id}:avatar  STRING<avatar_id>    - per-room avatar
// All entries carry the session TTL.

const (
	userSessionPrefix = "ws:user:"
	sessionUserPrefix = "ws:session:"
	roomUsersPrefix   = "ws:room:"
	roomUsersSuffix   = ":users"
)

func userSessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", userSessionPrefix, userID)
}

func sessionUserKey(sessionID string) string {
	return sessionUserPrefix + sessionID
}

func roomUsersKey(roomID int64) string {
	return fmt.Sprintf("%s%d%s", roomUsersPrefix, roomID, roomUsersSuffix)
}

func userSessionPattern() string {
	return userSessionPrefix + "*"
}

// AvatarKey builds the per-room avatar entry key for SaveValue/GetValue.
func AvatarKey(roomID, userID int64) string {
	return fmt.Sprintf("%s%d:user:%d:avatar", roomUsersPrefix, roomID, userID)
}
