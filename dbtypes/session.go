package dbtypes

import "time"

// Account holds a user's login credentials. Stored separately from the
// profile documents so the password hash never travels with profile reads.
type Account struct {
	Email        string `firestore:"email"`
	PasswordHash string `firestore:"passwordHash"`
	UserID       string `firestore:"userId"`
}

// Session represents a log-in session for a user.
type Session struct {
	Cookie  string    `firestore:"cookie"`
	UserID  string    `firestore:"userId"`
	Expires time.Time `firestore:"expires"`
}
