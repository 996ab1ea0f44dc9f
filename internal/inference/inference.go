package inference

import (
	"context"
	"errors"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System   string
	Messages []Message
}

// Client streams a reply as an ordered sequence of text fragments. The
// fragment channel is closed when the reply is complete; the error channel
// then yields at most one error.
type Client interface {
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)
	Name() string
}

var ErrEmptyReply = errors.New("inference: empty reply")

// Collect drains a stream, calling onFragment for each piece in arrival order,
// and returns the concatenated text.
func Collect(ctx context.Context, fragments <-chan string, errs <-chan error, onFragment func(string) error) (string, error) {
	var b strings.Builder
	for {
		select {
		case frag, ok := <-fragments:
			if !ok {
				if err := <-errs; err != nil {
					return b.String(), err
				}
				if strings.TrimSpace(b.String()) == "" {
					return "", ErrEmptyReply
				}
				return b.String(), nil
			}
			b.WriteString(frag)
			if onFragment != nil {
				if err := onFragment(frag); err != nil {
					return b.String(), err
				}
			}
		case <-ctx.Done():
			return b.String(), ctx.Err()
		}
	}
}
