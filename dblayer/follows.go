package dblayer

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FollowUser records that callerID follows userID. One transaction writes
// both edge documents and bumps the counter on each side's public profile,
// so the edges and counters cannot drift apart.
func (db *DB) FollowUser(ctx context.Context, callerID, userID string) error {
	return db.changeFollowEdge(ctx, callerID, userID, true)
}

// UnfollowUser removes the follow edge recorded by FollowUser.
func (db *DB) UnfollowUser(ctx context.Context, callerID, userID string) error {
	return db.changeFollowEdge(ctx, callerID, userID, false)
}

// validateFollowChange decides whether a follow or unfollow may proceed
// given the current edge state.
func validateFollowChange(callerID, userID string, edgeExists, follow bool) error {
	if callerID == userID {
		return fmt.Errorf("%w: cannot follow yourself", ErrInvalidArgument)
	}
	if follow && edgeExists {
		return fmt.Errorf("%s already follows %s: %w", callerID, userID, ErrAlreadyInRelation)
	}
	if !follow && !edgeExists {
		return fmt.Errorf("%s does not follow %s: %w", callerID, userID, ErrNotInRelation)
	}
	return nil
}

func (db *DB) changeFollowEdge(ctx context.Context, callerID, userID string, follow bool) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if callerID == userID {
		return fmt.Errorf("%w: cannot follow yourself", ErrInvalidArgument)
	}

	followerPublic := db.publicProfiles().Doc(callerID)
	followeePublic := db.publicProfiles().Doc(userID)
	followerEdge := followeePublic.Collection(followersSubcollection).Doc(callerID)
	followingEdge := followerPublic.Collection(followingSubcollection).Doc(userID)

	err := db.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		for _, ref := range []*firestore.DocumentRef{followerPublic, followeePublic} {
			snap, err := txn.Get(ref)
			if err != nil && !isStoreNotFound(err) {
				return fmt.Errorf("while reading profile %s: %w", ref.ID, err)
			}
			if snap == nil || !snap.Exists() {
				return fmt.Errorf("profile %s: %w", ref.ID, ErrNotFound)
			}
		}

		edgeSnap, err := txn.Get(followerEdge)
		if err != nil && !isStoreNotFound(err) {
			return fmt.Errorf("while reading follow edge: %w", err)
		}
		edgeExists := edgeSnap != nil && edgeSnap.Exists()

		if err := validateFollowChange(callerID, userID, edgeExists, follow); err != nil {
			return err
		}

		if follow {
			edgeDoc := map[string]interface{}{"timestamp": firestore.ServerTimestamp}
			if err := txn.Set(followerEdge, edgeDoc); err != nil {
				return err
			}
			if err := txn.Set(followingEdge, edgeDoc); err != nil {
				return err
			}
			if err := txn.Update(followeePublic, []firestore.Update{{Path: followerCountField, Value: firestore.Increment(1)}}); err != nil {
				return err
			}
			return txn.Update(followerPublic, []firestore.Update{{Path: followingCountField, Value: firestore.Increment(1)}})
		}

		if err := txn.Delete(followerEdge); err != nil {
			return err
		}
		if err := txn.Delete(followingEdge); err != nil {
			return err
		}
		if err := txn.Update(followeePublic, []firestore.Update{{Path: followerCountField, Value: firestore.Increment(-1)}}); err != nil {
			return err
		}
		return txn.Update(followerPublic, []firestore.Update{{Path: followingCountField, Value: firestore.Increment(-1)}})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyInRelation) || errors.Is(err, ErrNotInRelation) {
			return err
		}
		return wrapStoreError(err, fmt.Sprintf("changing follow edge %s -> %s", callerID, userID))
	}
	return nil
}

// isFollowingFromLookup folds an edge lookup into the lenient answer: a
// missing edge or a missing profile reads as false with no error, unlike
// the counter and id getters. Only transport failures surface, and those
// the caller wraps.
func isFollowingFromLookup(exists bool, err error) (bool, error) {
	if err != nil {
		if isStoreNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// IsFollowing reports whether followerID follows followeeID. Missing
// profiles or edges simply read as false.
func (db *DB) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	edge := db.publicProfiles().Doc(followeeID).Collection(followersSubcollection).Doc(followerID)
	snap, err := edge.Get(ctx)
	exists := err == nil && snap.Exists()

	following, err := isFollowingFromLookup(exists, err)
	if err != nil {
		return false, wrapStoreError(err, fmt.Sprintf("checking follow edge %s -> %s", followerID, followeeID))
	}
	return following, nil
}

// GetFollowerCount returns the denormalized follower counter from the
// public profile.
func (db *DB) GetFollowerCount(ctx context.Context, userID string) (int64, error) {
	return db.followCounter(ctx, userID, followerCountField)
}

// GetFollowingCount returns the denormalized following counter from the
// public profile.
func (db *DB) GetFollowingCount(ctx context.Context, userID string) (int64, error) {
	return db.followCounter(ctx, userID, followingCountField)
}

// profileLookupError maps a failed public-profile read. A missing profile
// is a hard NotFound here; the lenient missing-reads-as-false treatment is
// reserved for IsFollowing.
func profileLookupError(err error, userID, op string) error {
	if isStoreNotFound(err) {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return wrapStoreError(err, op)
}

// counterFromProfileDoc extracts a denormalized counter field. Missing
// counters read as zero; non-numeric values are malformed.
func counterFromProfileDoc(data map[string]interface{}, userID, field string) (int64, error) {
	switch v := data[field].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: profile %s has malformed %s", ErrInvalidArgument, userID, field)
}

func (db *DB) followCounter(ctx context.Context, userID, field string) (int64, error) {
	snap, err := db.publicProfiles().Doc(userID).Get(ctx)
	if err != nil {
		return 0, profileLookupError(err, userID, fmt.Sprintf("reading %s for %s", field, userID))
	}
	return counterFromProfileDoc(snap.Data(), userID, field)
}

// GetFollowerIds lists the user IDs following userID.
func (db *DB) GetFollowerIds(ctx context.Context, userID string) ([]string, error) {
	if err := db.requireProfileExists(ctx, userID); err != nil {
		return nil, err
	}
	return db.edgeIDs(ctx, userID, followersSubcollection)
}

// GetFollowingIds lists the user IDs userID follows.
func (db *DB) GetFollowingIds(ctx context.Context, userID string) ([]string, error) {
	if err := db.requireProfileExists(ctx, userID); err != nil {
		return nil, err
	}
	return db.edgeIDs(ctx, userID, followingSubcollection)
}

func (db *DB) requireProfileExists(ctx context.Context, userID string) error {
	_, err := db.publicProfiles().Doc(userID).Get(ctx)
	if err != nil {
		return profileLookupError(err, userID, fmt.Sprintf("checking profile %s", userID))
	}
	return nil
}

// edgeIDs lists the document IDs in one of a profile's follow
// subcollections. Edge documents carry only a timestamp; the ID is the
// payload.
func (db *DB) edgeIDs(ctx context.Context, userID, subcollection string) ([]string, error) {
	iter := db.publicProfiles().Doc(userID).Collection(subcollection).Documents(ctx)
	defer iter.Stop()

	ids := []string{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreError(err, fmt.Sprintf("listing %s of %s", subcollection, userID))
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}
