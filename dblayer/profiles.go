package dblayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reach-out/dbtypes"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

func (db *DB) publicProfiles() *firestore.CollectionRef {
	return db.client.Collection(publicProfilesCollection)
}

func (db *DB) privateProfiles() *firestore.CollectionRef {
	return db.client.Collection(privateProfilesCollection)
}

// validateCounterAmount guards the kudos and help-received increments.
func validateCounterAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount %d must be positive", ErrInvalidArgument, amount)
	}
	if amount > maxCounterPerTransaction {
		return fmt.Errorf("%w: amount %d exceeds per-transaction ceiling %d", ErrInvalidArgument, amount, maxCounterPerTransaction)
	}
	return nil
}

// GetAllUserProfiles lists every public profile.
func (db *DB) GetAllUserProfiles(ctx context.Context) ([]*dbtypes.UserProfile, error) {
	iter := db.publicProfiles().Documents(ctx)
	defer iter.Stop()

	var out []*dbtypes.UserProfile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreError(err, "listing profiles")
		}

		p, err := dbtypes.ProfileFromDoc(snap.Data())
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed profile document", slog.String("doc", snap.Ref.ID), slog.Any("err", err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetUserProfile returns the private record when the owner asks for their
// own profile, and the public mirror otherwise. On the owner path the
// counters maintained on the public document (kudos, follower/following)
// are re-synced into the private one if they have drifted; a sync failure
// is logged, not fatal.
func (db *DB) GetUserProfile(ctx context.Context, callerID, userID string) (*dbtypes.UserProfile, error) {
	if userID != callerID {
		return db.getPublicProfile(ctx, userID)
	}

	privateRef := db.privateProfiles().Doc(userID)
	privateSnap, err := privateRef.Get(ctx)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, wrapStoreError(err, fmt.Sprintf("retrieving private profile %s", userID))
	}

	publicSnap, err := db.publicProfiles().Doc(userID).Get(ctx)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, wrapStoreError(err, fmt.Sprintf("retrieving public profile %s", userID))
	}

	private, err := dbtypes.ProfileFromDoc(privateSnap.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding private profile %s: %v", ErrInvalidArgument, userID, err)
	}
	public, err := dbtypes.ProfileFromDoc(publicSnap.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding public profile %s: %v", ErrInvalidArgument, userID, err)
	}

	if synced := db.syncPrivateCounters(ctx, privateRef, private, public); synced != nil {
		return synced, nil
	}
	return private, nil
}

// syncPrivateCounters copies counter drift from the public document into the
// private one. Returns the corrected profile, or nil when nothing changed or
// the sync write failed.
func (db *DB) syncPrivateCounters(ctx context.Context, privateRef *firestore.DocumentRef, private, public *dbtypes.UserProfile) *dbtypes.UserProfile {
	updates := []firestore.Update{}
	if private.Kudos != public.Kudos {
		updates = append(updates, firestore.Update{Path: kudosField, Value: public.Kudos})
		private.Kudos = public.Kudos
	}
	if private.FollowerCount != public.FollowerCount {
		updates = append(updates, firestore.Update{Path: followerCountField, Value: public.FollowerCount})
		private.FollowerCount = public.FollowerCount
	}
	if private.FollowingCount != public.FollowingCount {
		updates = append(updates, firestore.Update{Path: followingCountField, Value: public.FollowingCount})
		private.FollowingCount = public.FollowingCount
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := privateRef.Update(ctx, updates); err != nil {
		slog.ErrorContext(ctx, "Error syncing profile counters", slog.String("profile", private.ID), slog.Any("err", err))
		return nil
	}
	return private
}

func (db *DB) getPublicProfile(ctx context.Context, userID string) (*dbtypes.UserProfile, error) {
	snap, err := db.publicProfiles().Doc(userID).Get(ctx)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, wrapStoreError(err, fmt.Sprintf("retrieving profile %s", userID))
	}

	p, err := dbtypes.ProfileFromDoc(snap.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding profile %s: %v", ErrInvalidArgument, userID, err)
	}
	return p, nil
}

// AddUserProfile creates the private document and its public mirror in one
// batch. Users may only create their own profile.
func (db *DB) AddUserProfile(ctx context.Context, callerID string, profile *dbtypes.UserProfile) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if profile.ID != callerID {
		return fmt.Errorf("%w: can only create your own profile", ErrUnauthorized)
	}

	batch := db.client.Batch()
	batch.Set(db.privateProfiles().Doc(profile.ID), profile.ToDoc())
	batch.Set(db.publicProfiles().Doc(profile.ID), profile.Blurred().ToDoc())
	if _, err := batch.Commit(ctx); err != nil {
		return wrapStoreError(err, fmt.Sprintf("adding profile %s", profile.ID))
	}
	return nil
}

// UpdateUserProfile rewrites both documents. Owner only; the profile ID is
// immutable.
func (db *DB) UpdateUserProfile(ctx context.Context, callerID, userID string, updated *dbtypes.UserProfile) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if userID != callerID || updated.ID != callerID {
		return fmt.Errorf("%w: can only modify your own profile", ErrUnauthorized)
	}

	batch := db.client.Batch()
	batch.Set(db.privateProfiles().Doc(userID), updated.ToDoc())
	batch.Set(db.publicProfiles().Doc(userID), updated.Blurred().ToDoc())
	if _, err := batch.Commit(ctx); err != nil {
		return wrapStoreError(err, fmt.Sprintf("updating profile %s", userID))
	}
	return nil
}

// DeleteUserProfile removes both profile documents and cascades into the
// follow graph: every edge document referencing the profile is deleted and
// the counter on the other side decremented, so no orphaned edges remain.
func (db *DB) DeleteUserProfile(ctx context.Context, callerID, userID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if userID != callerID {
		return fmt.Errorf("%w: can only delete your own profile", ErrUnauthorized)
	}

	followerIDs, err := db.edgeIDs(ctx, userID, followersSubcollection)
	if err != nil {
		return err
	}
	followingIDs, err := db.edgeIDs(ctx, userID, followingSubcollection)
	if err != nil {
		return err
	}

	// One op per write so the chunking below can count against the
	// Firestore batch limit. The profile deletes go last: a cascade that
	// dies partway leaves the profile present and the delete retryable.
	ops := []batchOp{}
	for _, followerID := range followerIDs {
		followerEdge := db.publicProfiles().Doc(userID).Collection(followersSubcollection).Doc(followerID)
		followingEdge := db.publicProfiles().Doc(followerID).Collection(followingSubcollection).Doc(userID)
		followerProfile := db.publicProfiles().Doc(followerID)
		ops = append(ops,
			func(b *firestore.WriteBatch) { b.Delete(followerEdge) },
			func(b *firestore.WriteBatch) { b.Delete(followingEdge) },
			func(b *firestore.WriteBatch) {
				b.Update(followerProfile, []firestore.Update{{Path: followingCountField, Value: firestore.Increment(-1)}})
			},
		)
	}
	for _, followeeID := range followingIDs {
		followingEdge := db.publicProfiles().Doc(userID).Collection(followingSubcollection).Doc(followeeID)
		followerEdge := db.publicProfiles().Doc(followeeID).Collection(followersSubcollection).Doc(userID)
		followeeProfile := db.publicProfiles().Doc(followeeID)
		ops = append(ops,
			func(b *firestore.WriteBatch) { b.Delete(followingEdge) },
			func(b *firestore.WriteBatch) { b.Delete(followerEdge) },
			func(b *firestore.WriteBatch) {
				b.Update(followeeProfile, []firestore.Update{{Path: followerCountField, Value: firestore.Increment(-1)}})
			},
		)
	}
	privateRef := db.privateProfiles().Doc(userID)
	publicRef := db.publicProfiles().Doc(userID)
	ops = append(ops,
		func(b *firestore.WriteBatch) { b.Delete(privateRef) },
		func(b *firestore.WriteBatch) { b.Delete(publicRef) },
	)

	for _, chunk := range chunkOps(ops, maxBatchWrites) {
		batch := db.client.Batch()
		for _, op := range chunk {
			op(batch)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return wrapStoreError(err, fmt.Sprintf("deleting profile %s", userID))
		}
	}
	return nil
}

// batchOp is one write queued onto a Firestore batch.
type batchOp func(*firestore.WriteBatch)

// chunkOps splits a write sequence into runs that fit the Firestore batch
// limit, preserving order.
func chunkOps(ops []batchOp, max int) [][]batchOp {
	var chunks [][]batchOp
	for len(ops) > 0 {
		chunk := ops
		if len(chunk) > max {
			chunk = chunk[:max]
		}
		ops = ops[len(chunk):]
		chunks = append(chunks, chunk)
	}
	return chunks
}

// AwardKudos increments a user's kudos on both profile documents inside one
// transaction.
func (db *DB) AwardKudos(ctx context.Context, userID string, amount int64) error {
	return db.incrementCounterPair(ctx, userID, kudosField, amount)
}

// ReceiveHelp increments a user's help-received counter on both profile
// documents inside one transaction.
func (db *DB) ReceiveHelp(ctx context.Context, userID string, amount int64) error {
	return db.incrementCounterPair(ctx, userID, helpReceivedField, amount)
}

func (db *DB) incrementCounterPair(ctx context.Context, userID, field string, amount int64) error {
	if err := validateCounterAmount(amount); err != nil {
		return err
	}

	publicRef := db.publicProfiles().Doc(userID)
	privateRef := db.privateProfiles().Doc(userID)

	err := db.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		if err := txnProfilePairExists(txn, publicRef, privateRef, userID); err != nil {
			return err
		}

		increment := []firestore.Update{{Path: field, Value: firestore.Increment(amount)}}
		if err := txn.Update(publicRef, increment); err != nil {
			return err
		}
		return txn.Update(privateRef, increment)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return wrapStoreError(err, fmt.Sprintf("incrementing %s for user %s", field, userID))
	}
	return nil
}

// AwardKudosBatch awards kudos to several users atomically. Amounts are
// validated per user and in total against the safety ceiling; all profiles
// must exist or nothing is written.
func (db *DB) AwardKudosBatch(ctx context.Context, awards map[string]int64) error {
	var total int64
	for _, amount := range awards {
		if err := validateCounterAmount(amount); err != nil {
			return err
		}
		total += amount
	}
	if total > maxCounterPerTransaction {
		return fmt.Errorf("%w: total %d exceeds per-transaction ceiling %d", ErrInvalidArgument, total, maxCounterPerTransaction)
	}
	if len(awards) == 0 {
		return nil
	}

	err := db.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		// All reads first: Firestore transactions forbid reads after the
		// first write.
		for userID := range awards {
			if err := txnProfilePairExists(txn, db.publicProfiles().Doc(userID), db.privateProfiles().Doc(userID), userID); err != nil {
				return err
			}
		}

		for userID, amount := range awards {
			increment := []firestore.Update{{Path: kudosField, Value: firestore.Increment(amount)}}
			if err := txn.Update(db.publicProfiles().Doc(userID), increment); err != nil {
				return err
			}
			if err := txn.Update(db.privateProfiles().Doc(userID), increment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return wrapStoreError(err, "awarding kudos batch")
	}
	return nil
}

// txnProfilePairExists reads both documents of a profile inside the
// transaction and fails with NotFound if either is absent.
func txnProfilePairExists(txn *firestore.Transaction, publicRef, privateRef *firestore.DocumentRef, userID string) error {
	publicSnap, err := txn.Get(publicRef)
	if err != nil && !isStoreNotFound(err) {
		return fmt.Errorf("while reading public profile %s: %w", userID, err)
	}
	privateSnap, err := txn.Get(privateRef)
	if err != nil && !isStoreNotFound(err) {
		return fmt.Errorf("while reading private profile %s: %w", userID, err)
	}
	if publicSnap == nil || !publicSnap.Exists() || privateSnap == nil || !privateSnap.Exists() {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return nil
}
