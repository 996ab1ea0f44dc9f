package user

type CreateUserRequest struct {
	ClerkID   string `json:"clerkId" validate:"required"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// UpdateProfileRequest patches the profile. Empty strings and nil pointers
// leave the stored value untouched; a non-nil Interests slice replaces the list.
type UpdateProfileRequest struct {
	Username  string   `json:"username,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	ImageURL  string   `json:"imageUrl,omitempty"`
	Age       *int     `json:"age,omitempty"`
	Interests []string `json:"interests,omitempty"`
}
