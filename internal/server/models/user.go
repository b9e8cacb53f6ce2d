package models

import "time"

// User is a registered account. Verifier is the argon2id hash of the account
// password under Salt; the password itself is never stored.
type User struct {
	ID        string
	Username  string
	Email     string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
