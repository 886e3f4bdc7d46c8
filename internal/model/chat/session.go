package chat

import "time"

// Session summarizes one server-side conversation. The backend owns
// these; the client holds a read-mostly cached list plus a pointer to
// the current session id. An empty id means the conversation has not
// been persisted yet (no message sent).
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
