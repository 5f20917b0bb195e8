package auth

// HasUserUUID reports whether TrustedSession.GetUserUUID will succeed.
// Provider external ids are opaque strings; only accounts registered
// through the hashid mapping carry UUID user ids.
func HasUserUUID(session *TrustedSession) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}
