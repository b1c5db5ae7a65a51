package sessions

import "time"

// Session is the server-side session record referenced by the signed cookie.
// IsAdmin is a cached copy of the adjudicated verdict, never authoritative:
// it is refreshed from the user record on every request that depends on it.
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	UserEmail string    `bson:"userEmail" json:"userEmail"`
	IsAdmin   bool      `bson:"isAdmin" json:"isAdmin"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
