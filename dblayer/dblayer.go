// Package dblayer packages up most actual Firestore accesses for the Reach
// Out backend: requests, profiles, follow edges, chats, sessions, and
// profile photos.
//
// Caller identity is passed explicitly as a callerID argument; an empty
// callerID means no authenticated user. The checks here exist to fail fast
// with a clear error — the Firestore security rules remain the real
// enforcement boundary.
package dblayer

import (
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	requestsCollection        = "requests"
	publicProfilesCollection  = "public_profiles"
	privateProfilesCollection = "private_profiles"
	followersSubcollection    = "followers"
	followingSubcollection    = "following"
	sessionsCollection        = "sessions"
	accountsCollection        = "accounts"
	chatsCollection           = "chats"
	messagesSubcollection     = "messages"

	followerCountField  = "followerCount"
	followingCountField = "followingCount"
	kudosField          = "kudos"
	helpReceivedField   = "helpReceived"
)

// Safety ceiling for a single kudos or help-received transaction.
const maxCounterPerTransaction = 1000

// Firestore commits at most 500 writes per batch.
const maxBatchWrites = 500

var (
	ErrUnauthenticated    = errors.New("no authenticated user")
	ErrUnauthorized       = errors.New("caller does not own this resource")
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidStatus      = errors.New("request status does not allow this operation")
	ErrUserNotHelper      = errors.New("user is not an accepted helper of this request")
	ErrAlreadyInRelation  = errors.New("relation already exists")
	ErrNotInRelation      = errors.New("relation does not exist")
	ErrNetworkUnavailable = errors.New("backing store unavailable")
)

type DB struct {
	client              *firestore.Client
	photoBucket         *storage.BucketHandle
	photoBucketName     string
	googleOAuthClientID string
}

// New wires the data layer onto a Firestore client. photoBucket may be nil
// when photo storage is not configured (the updater job runs without it).
func New(client *firestore.Client, photoBucket *storage.BucketHandle, photoBucketName, googleOAuthClientID string) *DB {
	return &DB{
		client:              client,
		photoBucket:         photoBucket,
		photoBucketName:     photoBucketName,
		googleOAuthClientID: googleOAuthClientID,
	}
}

// wrapStoreError folds a Firestore client error into the error taxonomy.
// codes.Unavailable means the store could only have answered from cache, a
// state the UI must distinguish from a true NotFound.
func wrapStoreError(err error, op string) error {
	switch status.Code(err) {
	case codes.Unavailable:
		return fmt.Errorf("while %s: %w: %v", op, ErrNetworkUnavailable, err)
	case codes.NotFound:
		return fmt.Errorf("while %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("while %s: %w", op, err)
}

func isStoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// requireCaller is the Unauthenticated gate shared by every mutating
// operation.
func requireCaller(callerID string) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	return nil
}
