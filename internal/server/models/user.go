// Package models holds the records persisted by the credential store.
package models

import "time"

// User is an account. Email and UserName are each unique across all users;
// Salt is generated once at creation and never changes.
type User struct {
	ID           string    `db:"id" bson:"userid"`
	Email        string    `db:"email" bson:"email"`
	UserName     string    `db:"username" bson:"username"`
	PasswordHash string    `db:"password_hash" bson:"password"`
	Salt         []byte    `db:"salt" bson:"salt"`
	CreatedAt    time.Time `db:"created_at" bson:"created_at"`
}
