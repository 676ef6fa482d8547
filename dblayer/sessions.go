package dblayer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"reach-out/dbtypes"

	"cloud.google.com/go/firestore"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/iterator"
)

const sessionLifetime = 18 * time.Hour

// CreateAccount registers a login account and returns the user ID it was
// bound to. The caller still needs to create a profile separately.
func (db *DB) CreateAccount(ctx context.Context, email, password, userID string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password must not be empty", ErrInvalidArgument)
	}
	if userID == "" {
		return fmt.Errorf("%w: user ID must not be empty", ErrInvalidArgument)
	}

	existing, err := db.accountSnapshotByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("account for %q: %w", email, ErrAlreadyInRelation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("while hashing password: %w", err)
	}

	account := &dbtypes.Account{
		Email:        email,
		PasswordHash: string(hash),
		UserID:       userID,
	}
	if _, _, err := db.client.Collection(accountsCollection).Add(ctx, account); err != nil {
		return wrapStoreError(err, fmt.Sprintf("storing account for %q", email))
	}
	return nil
}

// SessionFromPassword runs the password-based login process for a given
// user, returning a session or an error.
func (db *DB) SessionFromPassword(ctx context.Context, email, password string) (*dbtypes.Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password must not be empty", ErrInvalidArgument)
	}

	accountSnapshot, err := db.accountSnapshotByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if accountSnapshot == nil {
		return nil, fmt.Errorf("unknown user or wrong password: %w", ErrUnauthenticated)
	}

	account := &dbtypes.Account{}
	if err := accountSnapshot.DataTo(account); err != nil {
		return nil, fmt.Errorf("while unmarshaling account %q: %w", email, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("unknown user or wrong password: %w", ErrUnauthenticated)
	}

	return db.createSession(ctx, account.UserID)
}

// SessionFromGoogleFederation signs in a user based on a Google identity
// token returned from the "Sign in with Google" process.
func (db *DB) SessionFromGoogleFederation(ctx context.Context, idToken string) (*dbtypes.Session, error) {
	payload, err := idtoken.Validate(ctx, idToken, db.googleOAuthClientID)
	if err != nil {
		return nil, fmt.Errorf("while validating ID token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("ID token carries no email claim: %w", ErrUnauthenticated)
	}

	accountSnapshot, err := db.accountSnapshotByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if accountSnapshot == nil {
		// No autocreation; users must sign up first so a profile exists.
		return nil, fmt.Errorf("no account for %q: %w", email, ErrUnauthenticated)
	}

	account := &dbtypes.Account{}
	if err := accountSnapshot.DataTo(account); err != nil {
		return nil, fmt.Errorf("while unmarshaling account %q: %w", email, err)
	}

	return db.createSession(ctx, account.UserID)
}

func (db *DB) createSession(ctx context.Context, userID string) (*dbtypes.Session, error) {
	sessionCookieBytes := make([]byte, 32)
	if _, err := rand.Read(sessionCookieBytes); err != nil {
		return nil, fmt.Errorf("while generating session cookie: %w", err)
	}

	session := &dbtypes.Session{
		Cookie:  base64.StdEncoding.EncodeToString(sessionCookieBytes),
		UserID:  userID,
		Expires: time.Now().Add(sessionLifetime),
	}
	if _, _, err := db.client.Collection(sessionsCollection).Add(ctx, session); err != nil {
		return nil, wrapStoreError(err, "storing session cookie")
	}
	return session, nil
}

// DeleteSession deletes a session by its cookie.
func (db *DB) DeleteSession(ctx context.Context, cookie string) error {
	sessionIter := db.client.Collection(sessionsCollection).Where("cookie", "==", cookie).Documents(ctx)
	defer sessionIter.Stop()
	for {
		sessionSnapshot, err := sessionIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return wrapStoreError(err, "looking up session")
		}

		_, err = sessionSnapshot.Ref.Delete(ctx, firestore.LastUpdateTime(sessionSnapshot.UpdateTime))
		if err != nil {
			return wrapStoreError(err, "deleting session")
		}
	}

	return nil
}

// UserIDFromSessionCookie looks up a session from its cookie and returns
// the ID of the corresponding user. Returns "" with a nil error when the
// cookie does not correspond to a live session; the caller decides whether
// an anonymous user is acceptable.
func (db *DB) UserIDFromSessionCookie(ctx context.Context, cookie string) (string, error) {
	if cookie == "" {
		return "", nil
	}

	var sessionSnapshot *firestore.DocumentSnapshot
	sessionIter := db.client.Collection(sessionsCollection).Where("cookie", "==", cookie).Documents(ctx)
	defer sessionIter.Stop()
	for {
		var err error
		sessionSnapshot, err = sessionIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", wrapStoreError(err, "looking up session")
		}

		// We only consider a single session.
		break
	}
	if sessionSnapshot == nil {
		// Session object must have been cleaned up due to expiration; user
		// is not logged in.
		slog.InfoContext(ctx, "No logged-in user because there was no session object corresponding to the cookie in the database.")
		return "", nil
	}

	session := &dbtypes.Session{}
	if err := sessionSnapshot.DataTo(session); err != nil {
		return "", fmt.Errorf("while unmarshaling session: %w", err)
	}

	if session.Expires.Before(time.Now()) {
		// Session object is expired; user is not logged in.
		slog.InfoContext(ctx, "No logged-in user because the session object in the database was expired.")
		return "", nil
	}

	return session.UserID, nil
}

func (db *DB) accountSnapshotByEmail(ctx context.Context, email string) (*firestore.DocumentSnapshot, error) {
	accountIter := db.client.Collection(accountsCollection).Where("email", "==", email).Documents(ctx)
	defer accountIter.Stop()
	for {
		accountSnapshot, err := accountIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreError(err, fmt.Sprintf("looking up account with email %q", email))
		}

		// We only consider a single account.
		return accountSnapshot, nil
	}
	return nil, nil
}
