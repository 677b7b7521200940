package protocol

// ErrorCode identifies a structured failure class surfaced to clients.
type ErrorCode string

const (
	ErrRoomNotFound       = ErrorCode("ROOM_NOT_FOUND")
	ErrRoomFull           = ErrorCode("ROOM_FULL")
	ErrRoomCapReached     = ErrorCode("ROOM_CAP_REACHED")
	ErrDraining           = ErrorCode("DRAINING")
	ErrMaintenance        = ErrorCode("MAINTENANCE")
	ErrRateLimited        = ErrorCode("RATE_LIMITED")
	ErrRateLimitEscalated = ErrorCode("RATE_LIMIT_ESCALATED")
	ErrNodeUnavailable    = ErrorCode("NODE_UNAVAILABLE")
	ErrRoomNodeMismatch   = ErrorCode("ROOM_NODE_MISMATCH")
	ErrSafeModeActive     = ErrorCode("SAFEMODE_ACTIVE")
	ErrInvalidRequest     = ErrorCode("INVALID_REQUEST")
)

// WireError is the error half of an envelope.
type WireError struct {
	Code         ErrorCode      `json:"code"`
	Message      string         `json:"message"`
	RetryAfterMs int64          `json:"retryAfterMs,omitempty"`
	Debug        map[string]any `json:"debug,omitempty"`
}

// Envelope is the JSON structure sent to clients for op-style messages.
type Envelope struct {
	Op       string     `json:"op"`
	ReqID    string     `json:"reqId,omitempty"`
	RoomCode string     `json:"roomCode,omitempty"`
	MatchID  string     `json:"matchId,omitempty"`
	ServerTs int64      `json:"serverTs"`
	OK       bool       `json:"ok"`
	Data     any        `json:"data"`
	Error    *WireError `json:"error"`
}

func OK(op, roomCode, matchID string, serverTs int64, data any) Envelope {
	return Envelope{Op: op, RoomCode: roomCode, MatchID: matchID, ServerTs: serverTs, OK: true, Data: data}
}

func Err(op, roomCode, matchID string, serverTs int64, werr *WireError) Envelope {
	return Envelope{Op: op, RoomCode: roomCode, MatchID: matchID, ServerTs: serverTs, OK: false, Error: werr}
}
