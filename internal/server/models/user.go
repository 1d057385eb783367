// Package models defines the identity records persisted by the server and
// the typed values exchanged with its callers.
package models

import "time"

// User is the persisted account record. PasswordHash and RefreshTokenHash are
// one-way digests and never leave the service layer; callers receive Profile.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	RefreshTokenHash *string
	Firstname        string
	Lastname         string
	Avatar           *Avatar
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Avatar references the user's profile image in the asset store.
type Avatar struct {
	AssetID string `json:"asset_id"`
	URL     string `json:"url"`
}

// Profile is User projected without its secret fields.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Avatar    *Avatar   `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile returns the public projection of u.
func (u *User) Profile() *Profile {
	p := &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Avatar != nil {
		a := *u.Avatar
		p.Avatar = &a
	}
	return p
}

// SignupCandidate is the input to account creation.
type SignupCandidate struct {
	Email           string
	Password        string
	ConfirmPassword string
	Firstname       string
	Lastname        string
}

// ProfileUpdate names the profile fields a caller may change; nil fields are
// left untouched. Secrets cannot be changed through it.
type ProfileUpdate struct {
	Firstname *string
	Lastname  *string
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Firstname == nil && p.Lastname == nil
}

// Ack acknowledges a successful profile mutation.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"msg"`
}
