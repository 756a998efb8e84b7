package users

import "time"

// User is the canonical user record issued by the NextBI backend alongside a
// session token. It is always stored and cleared together with that token.
type User struct {
	ID          string    `json:"id,omitempty"`          // Backend-assigned identifier
	Email       string    `json:"email,omitempty"`       // User's email address
	DisplayName string    `json:"displayName,omitempty"` // Name shown in the dashboard shell
	PhotoURL    string    `json:"photoUrl,omitempty"`    // Optional avatar URL
	Role        string    `json:"role,omitempty"`        // Backend-assigned role
	CreatedAt   time.Time `json:"createdAt,omitempty"`   // When the backend first saw this user
}
