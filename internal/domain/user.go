package domain

import "time"

// Role type to distinguish between user roles
type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)

// Coach is a coach profile document. BookingSummaries is the
// append-only compact calendar cache the mirror writer appends to;
// see BookingSummary for its staleness caveats.
type Coach struct {
	ID               string           `bson:"_id" json:"id"`
	Email            string           `bson:"email" json:"email"` // Should be unique
	PasswordHash     string           `bson:"passwordHash" json:"-"`
	DisplayName      string           `bson:"displayName" json:"displayName"`
	PhotoKey         string           `bson:"photoKey,omitempty" json:"photoKey,omitempty"`
	BookingSummaries []BookingSummary `bson:"bookingSummaries,omitempty" json:"bookingSummaries,omitempty"`
	CreatedAt        time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// Client is an athlete profile document.
type Client struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"` // Should be unique
	PasswordHash string    `bson:"passwordHash" json:"-"`
	DisplayName  string    `bson:"displayName" json:"displayName"`
	PhotoKey     string    `bson:"photoKey,omitempty" json:"photoKey,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
