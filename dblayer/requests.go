package dblayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reach-out/dbtypes"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// NewRequestID generates a fresh globally unique request ID. No I/O.
func (db *DB) NewRequestID() string {
	return uuid.NewString()
}

func (db *DB) requests() *firestore.CollectionRef {
	return db.client.Collection(requestsCollection)
}

// GetAllRequests returns every request document. Documents that fail to
// decode are logged and skipped rather than failing the whole listing.
func (db *DB) GetAllRequests(ctx context.Context) ([]*dbtypes.Request, error) {
	iter := db.requests().Documents(ctx)
	defer iter.Stop()

	var out []*dbtypes.Request
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreError(err, "listing requests")
		}

		req, err := dbtypes.RequestFromDoc(snap.Data())
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed request document", slog.String("doc", snap.Ref.ID), slog.Any("err", err))
			continue
		}
		out = append(out, req)
	}

	return out, nil
}

// GetAllCurrentRequests returns the requests still worth showing in the
// feed: anything whose display status is not COMPLETED or CANCELLED and
// whose stored status is not COMPLETED.
func (db *DB) GetAllCurrentRequests(ctx context.Context) ([]*dbtypes.Request, error) {
	all, err := db.GetAllRequests(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []*dbtypes.Request
	for _, req := range all {
		vs := req.ViewStatus(now)
		if vs == dbtypes.StatusCompleted || vs == dbtypes.StatusCancelled || req.Status == dbtypes.StatusCompleted {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// GetRequest fetches one request by ID.
func (db *DB) GetRequest(ctx context.Context, requestID string) (*dbtypes.Request, error) {
	snap, err := db.requests().Doc(requestID).Get(ctx)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		return nil, wrapStoreError(err, fmt.Sprintf("retrieving request %s", requestID))
	}

	req, err := dbtypes.RequestFromDoc(snap.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding request %s: %v", ErrInvalidArgument, requestID, err)
	}
	return req, nil
}

// GetRequestsByCreator returns the caller's own requests.
func (db *DB) GetRequestsByCreator(ctx context.Context, callerID string) ([]*dbtypes.Request, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	return db.queryRequests(ctx, db.requests().Where("creatorId", "==", callerID), "listing requests by creator")
}

// GetAcceptedRequests returns the requests the caller has accepted,
// excluding any the caller also created.
func (db *DB) GetAcceptedRequests(ctx context.Context, callerID string) ([]*dbtypes.Request, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	reqs, err := db.queryRequests(ctx, db.requests().Where("people", "array-contains", callerID), "listing accepted requests")
	if err != nil {
		return nil, err
	}

	out := reqs[:0]
	for _, req := range reqs {
		if req.CreatorID != callerID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (db *DB) queryRequests(ctx context.Context, q firestore.Query, op string) ([]*dbtypes.Request, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*dbtypes.Request
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreError(err, op)
		}

		req, err := dbtypes.RequestFromDoc(snap.Data())
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed request document", slog.String("doc", snap.Ref.ID), slog.Any("err", err))
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// AddRequest upserts a request by its ID. Only the creator may add their own
// request.
func (db *DB) AddRequest(ctx context.Context, callerID string, req *dbtypes.Request) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if req.RequestID == "" {
		return fmt.Errorf("%w: request has no ID", ErrInvalidArgument)
	}
	if req.CreatorID != callerID {
		return fmt.Errorf("%w: can only create requests with your own creator ID", ErrUnauthorized)
	}

	if _, err := db.requests().Doc(req.RequestID).Set(ctx, req.ToDoc()); err != nil {
		return wrapStoreError(err, fmt.Sprintf("adding request %s", req.RequestID))
	}
	return nil
}

// UpdateRequest replaces a request document. The ID is immutable and only
// the creator may update.
func (db *DB) UpdateRequest(ctx context.Context, callerID, requestID string, updated *dbtypes.Request) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	existing, err := db.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if existing.CreatorID != callerID {
		return fmt.Errorf("%w: can only modify your own requests", ErrUnauthorized)
	}
	if updated.RequestID != requestID {
		return fmt.Errorf("%w: request ID cannot be changed", ErrInvalidArgument)
	}

	if _, err := db.requests().Doc(requestID).Set(ctx, updated.ToDoc()); err != nil {
		return wrapStoreError(err, fmt.Sprintf("updating request %s", requestID))
	}
	return nil
}

// DeleteRequest removes a request. Creator only.
func (db *DB) DeleteRequest(ctx context.Context, callerID, requestID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	existing, err := db.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if existing.CreatorID != callerID {
		return fmt.Errorf("%w: can only delete your own requests", ErrUnauthorized)
	}

	if _, err := db.requests().Doc(requestID).Delete(ctx); err != nil {
		return wrapStoreError(err, fmt.Sprintf("deleting request %s", requestID))
	}
	return nil
}

// validateAccept decides whether callerID may join the request's helper set.
func validateAccept(req *dbtypes.Request, callerID string) error {
	if req.Status.Terminal() {
		return fmt.Errorf("%w: cannot accept a %s request", ErrInvalidStatus, req.Status)
	}
	if req.CreatorID == callerID {
		return fmt.Errorf("%w: cannot accept your own request", ErrInvalidArgument)
	}
	if req.HasHelper(callerID) {
		return fmt.Errorf("%w: request %s already accepted", ErrAlreadyInRelation, req.RequestID)
	}
	return nil
}

// validateCancelAcceptance decides whether callerID may leave the helper set.
func validateCancelAcceptance(req *dbtypes.Request, callerID string) error {
	if req.CreatorID == callerID {
		return fmt.Errorf("%w: cannot revoke acceptance on a request you created", ErrInvalidArgument)
	}
	if !req.HasHelper(callerID) {
		return fmt.Errorf("%w: request %s was not accepted", ErrNotInRelation, req.RequestID)
	}
	return nil
}

// AcceptRequest adds the caller to the request's helper set. The membership
// write is a set union, so a retried accept converges instead of
// duplicating.
func (db *DB) AcceptRequest(ctx context.Context, callerID, requestID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	docRef := db.requests().Doc(requestID)
	err := db.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		snap, err := txn.Get(docRef)
		if err != nil {
			if isStoreNotFound(err) {
				return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
			}
			return fmt.Errorf("while reading request: %w", err)
		}

		req, err := dbtypes.RequestFromDoc(snap.Data())
		if err != nil {
			return fmt.Errorf("%w: while decoding request %s: %v", ErrInvalidArgument, requestID, err)
		}

		if err := validateAccept(req, callerID); err != nil {
			return err
		}

		return txn.Update(docRef, []firestore.Update{
			{Path: "people", Value: firestore.ArrayUnion(callerID)},
		})
	})
	if err != nil {
		return acceptanceError(err, "accepting request")
	}
	return nil
}

// CancelAcceptance removes the caller from the request's helper set.
func (db *DB) CancelAcceptance(ctx context.Context, callerID, requestID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}

	docRef := db.requests().Doc(requestID)
	err := db.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		snap, err := txn.Get(docRef)
		if err != nil {
			if isStoreNotFound(err) {
				return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
			}
			return fmt.Errorf("while reading request: %w", err)
		}

		req, err := dbtypes.RequestFromDoc(snap.Data())
		if err != nil {
			return fmt.Errorf("%w: while decoding request %s: %v", ErrInvalidArgument, requestID, err)
		}

		if err := validateCancelAcceptance(req, callerID); err != nil {
			return err
		}

		return txn.Update(docRef, []firestore.Update{
			{Path: "people", Value: firestore.ArrayRemove(callerID)},
		})
	})
	if err != nil {
		return acceptanceError(err, "cancelling acceptance")
	}
	return nil
}

// acceptanceError passes taxonomy errors through untouched and wraps
// transport errors.
func acceptanceError(err error, op string) error {
	for _, sentinel := range []error{ErrNotFound, ErrInvalidStatus, ErrInvalidArgument, ErrAlreadyInRelation, ErrNotInRelation, ErrUnauthorized, ErrUserNotHelper} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return wrapStoreError(err, op)
}

// validateClose decides whether callerID may close the request with the
// given helper selection. Checked against the stored status, and re-checked
// inside the closing transaction to guard against a concurrent closure.
func validateClose(req *dbtypes.Request, callerID string, selectedHelperIDs []string) error {
	if req.CreatorID != callerID {
		return fmt.Errorf("%w: only the creator may close a request", ErrUnauthorized)
	}
	if !req.Status.Live() {
		return fmt.Errorf("%w: cannot close a %s request", ErrInvalidStatus, req.Status)
	}
	for _, helperID := range selectedHelperIDs {
		if !req.HasHelper(helperID) {
			return fmt.Errorf("%w: %s", ErrUserNotHelper, helperID)
		}
	}
	return nil
}

// CloseRequest marks a request COMPLETED and records which helpers were
// selected for kudos. The status check and both field writes happen inside
// one transaction so a concurrent closure or a crash cannot leave the
// document half-closed.
//
// The returned bool reports whether the creator should receive a resolution
// bonus. The bonus is currently disabled and the method always returns
// false; the awarding path downstream stays in place.
// TODO: decide whether to ship the creator resolution bonus, then compute
// this from len(selectedHelperIDs) > 0.
func (db *DB) CloseRequest(ctx context.Context, callerID, requestID string, selectedHelperIDs []string) (bool, error) {
	if err := requireCaller(callerID); err != nil {
		return false, err
	}

	docRef := db.requests().Doc(requestID)
	err := db.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		snap, err := txn.Get(docRef)
		if err != nil {
			if isStoreNotFound(err) {
				return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
			}
			return fmt.Errorf("while reading request: %w", err)
		}

		req, err := dbtypes.RequestFromDoc(snap.Data())
		if err != nil {
			return fmt.Errorf("%w: while decoding request %s: %v", ErrInvalidArgument, requestID, err)
		}

		if err := validateClose(req, callerID, selectedHelperIDs); err != nil {
			return err
		}

		return txn.Update(docRef, []firestore.Update{
			{Path: "status", Value: string(dbtypes.StatusCompleted)},
			{Path: "selectedHelpers", Value: append([]string{}, selectedHelperIDs...)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return false, acceptanceError(err, fmt.Sprintf("closing request %s", requestID))
	}

	slog.InfoContext(ctx, "Closed request", slog.String("request", requestID), slog.Int("selectedHelpers", len(selectedHelperIDs)))
	return false, nil
}
