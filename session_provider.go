package voicegate

import "sync"

// The service hosts one interactive peer session at a time. A newly
// negotiated session replaces the previous one, which is closed.
var (
	currentSession     *Session
	currentSessionLock = &sync.Mutex{}
)

// SessionActive returns whether there's an active peer session
func SessionActive() bool {
	currentSessionLock.Lock()
	defer currentSessionLock.Unlock()
	return currentSession != nil
}

// CurrentSession returns the active peer session, nil when none exists
func CurrentSession() *Session {
	currentSessionLock.Lock()
	defer currentSessionLock.Unlock()
	return currentSession
}

// setCurrentSession installs s as the active session and closes the one
// it replaces.
func setCurrentSession(s *Session) {
	currentSessionLock.Lock()
	prev := currentSession
	currentSession = s
	currentSessionLock.Unlock()

	if prev != nil && prev != s {
		logger.Info().Str("sessionID", prev.id).Msg("closing replaced session")
		_ = prev.peerConnection.Close()
	}
}

// clearCurrentSession forgets s if it is still the active session.
func clearCurrentSession(s *Session) {
	currentSessionLock.Lock()
	if currentSession == s {
		currentSession = nil
	}
	currentSessionLock.Unlock()
}
