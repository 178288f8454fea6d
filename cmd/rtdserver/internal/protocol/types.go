package protocol

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionRefresh     = "refresh"
	ActionHeartbeat   = "heartbeat"
)

const (
	TypeAck          = "ack"
	TypeError        = "error"
	TypeValue        = "value"
	TypeSnapshot     = "snapshot"
	TypeHeartbeat    = "heartbeat"
	TypeUpdateNotify = "update_notify"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	TopicID int      `json:"topic_id"`
	Fields  []string `json:"fields"`
}

type WSResponse struct {
	Type       string      `json:"type"`             // see Type* constants
	ID         string      `json:"id,omitempty"`     // Matches request ID
	Status     string      `json:"status,omitempty"` // "success", "error"
	Message    string      `json:"message,omitempty"`
	TopicID    *int        `json:"topic_id,omitempty"`
	TopicCount *int        `json:"topic_count,omitempty"`
	Alive      *int        `json:"alive,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// UpdateNotify is the pre-encoded change signal pushed to a client.
var UpdateNotify = []byte(`{"type":"update_notify"}`)
