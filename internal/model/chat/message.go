package chat

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single conversation turn as rendered by the client.
// Messages are immutable once appended; ordering is insertion order.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Sender     Sender    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
	AudioEn    string    `json:"audioEn,omitempty"`
	AudioLocal string    `json:"audioLocal,omitempty"`
}
