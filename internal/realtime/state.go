package realtime

// ConnState is the client-local transport lifecycle state. It is mutated only
// inside the connection manager.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateUnavailable
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateUnavailable:
		return "unavailable"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
