package domain

import "time"

// User is the principal a request acts as. Records are owned by the document store;
// this module only reads them.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	PasswordHash    string    `json:"-"`
	IsActive        bool      `json:"isActive"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	FamilyID        string    `json:"familyId,omitempty"`
	RoleInFamily    string    `json:"roleInFamily,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

// HasFamily reports whether the user references a family.
func (u *User) HasFamily() bool {
	return u != nil && u.FamilyID != ""
}

// Family is the tenant scoping a user's data.
type Family struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	OwnerID   string    `json:"ownerId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
