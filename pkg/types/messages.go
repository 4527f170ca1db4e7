package types

// Update is one user-visible presentation of a session: the text, the set of
// actions currently enabled and an optional rendered image.
type Update struct {
	SessionID string   `json:"session_id"`
	Version   int64    `json:"version"`
	Text      string   `json:"text"`
	Actions   []string `json:"actions,omitempty"`
	Image     []byte   `json:"image,omitempty"`
	// Final marks the last update of a session.
	Final bool `json:"final,omitempty"`
}

// Client -> Server
type ClientMessage struct {
	Type   string        `json:"type"` // "action"
	Action ActionRequest `json:"action"`
}

// Server -> Client
type ServerMessage struct {
	Type   string  `json:"type"` // "update" | "notice"
	Update *Update `json:"update,omitempty"`
	Notice string  `json:"notice,omitempty"`
}

const (
	MsgAction = "action"
	MsgUpdate = "update"
	MsgNotice = "notice"
)
