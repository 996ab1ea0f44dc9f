package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"nyraAPI/internal/prompt"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	ClerkID       string    `json:"clerkId"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	Age           int       `json:"age,omitempty"`
	Interests     []string  `json:"interests"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Profile is the subset of the user the prompt enricher sees.
func (u *User) Profile() prompt.Profile {
	name := strings.TrimSpace(u.FirstName)
	if name == "" {
		name = strings.TrimSpace(u.Username)
	}
	return prompt.Profile{
		Name:      name,
		Age:       u.Age,
		Interests: u.Interests,
	}
}
