package chat

import (
	"time"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/prompt"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderCompanion Sender = "companion"
)

type Turn struct {
	ID        int64     `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type SendRequest struct {
	Message string `json:"message"`
}

// Exchange is one completed user turn plus the companion's reply.
type Exchange struct {
	UserTurn    Turn                      `json:"userTurn"`
	Reply       Turn                      `json:"reply"`
	Mood        prompt.Mood               `json:"mood"`
	Engagement  prompt.Engagement         `json:"engagement"`
	Unlocked    []achievement.Achievement `json:"unlocked"`
	FuelBalance int                       `json:"fuelBalance"`
}

// StreamEvent is the frame shape used by both the SSE and WebSocket transports.
type StreamEvent struct {
	Type     string    `json:"type"` // fragment | done | error
	Content  string    `json:"content,omitempty"`
	Exchange *Exchange `json:"exchange,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// UserMessages returns the contents of the user's turns, oldest first.
func UserMessages(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Sender == SenderUser {
			out = append(out, t.Content)
		}
	}
	return out
}
