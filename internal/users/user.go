package users

import "time"

// User is an application user mapped from identity provider claims. The
// OIDC subject is the primary key and the id every other component stores.
type User struct {
	Sub       string    `bson:"_id" json:"id"`
	Username  string    `bson:"username,omitempty" json:"username,omitempty"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
