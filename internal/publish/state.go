package publish

// State del Sink.
//
//	Disconnected ──Connect──▶ Connecting ──ok──▶ Connected
//	      ▲                        │                 │  ▲
//	      │                      error        lost   │  │ reconnected
//	      └────────────────────────┘                 ▼  │
//	      ◀──────────── Disconnect ───────────── Reconnecting
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

var allStates = []string{
	StateDisconnected.String(),
	StateConnecting.String(),
	StateConnected.String(),
	StateReconnecting.String(),
}
