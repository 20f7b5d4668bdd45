package flow

// Phase is where a login attempt stands.
//
//	IDLE -> AUTHORIZING -> CALLBACK_RECEIVED -> AUTHENTICATED | FAILED
//
// FAILED ends the attempt; the user starts again from IDLE. AUTHENTICATED lasts
// until the stored token expires.
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseAuthorizing      Phase = "AUTHORIZING"
	PhaseCallbackReceived Phase = "CALLBACK_RECEIVED"
	PhaseAuthenticated    Phase = "AUTHENTICATED"
	PhaseFailed           Phase = "FAILED"
)

func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether the attempt is over.
func (p Phase) Terminal() bool {
	return p == PhaseAuthenticated || p == PhaseFailed
}
