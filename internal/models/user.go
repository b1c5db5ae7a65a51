package models

import "time"

// User is an application user record. The ID is the identity provider's
// subject and is treated as an opaque string everywhere; it is never coerced
// to a numeric type. Email is stored verbatim; EmailLower is the key used
// for lookups so matching agrees with the case-insensitive comparison policy.
type User struct {
	ID          string    `bson:"_id" json:"id"`
	Email       string    `bson:"email" json:"email"`
	EmailLower  string    `bson:"emailLower" json:"-"`
	DisplayName string    `bson:"displayName" json:"displayName"`
	PhotoURL    string    `bson:"photoURL" json:"photoURL"`
	IsAdmin     bool      `bson:"isAdmin" json:"isAdmin"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
