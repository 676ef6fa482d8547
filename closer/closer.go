// Package closer orchestrates the closing of a help request: flipping the
// request to COMPLETED, awarding kudos to the selected helpers, and
// crediting the creator's help-received counter.
//
// The status flip is the commit point. Once it lands, reward failures
// degrade the result instead of rolling the closure back, so a helper can
// never un-complete a request by having a broken profile.
package closer

import (
	"context"
	"fmt"
	"log/slog"
)

// Reward sizing for a single closure.
const (
	KudosPerHelper            = 1
	KudosForCreatorResolution = 1
	HelpReceivedPerHelp       = 1
)

// RequestStore is the slice of the data layer the closer needs for the
// request side.
type RequestStore interface {
	// CloseRequest flips the request to COMPLETED and records the selected
	// helpers. The returned bool reports whether the creator earned a
	// resolution bonus.
	CloseRequest(ctx context.Context, callerID, requestID string, selectedHelperIDs []string) (bool, error)
}

// ProfileStore is the slice of the data layer the closer needs for the
// reward side.
type ProfileStore interface {
	AwardKudos(ctx context.Context, userID string, amount int64) error
	AwardKudosBatch(ctx context.Context, awards map[string]int64) error
	ReceiveHelp(ctx context.Context, userID string, amount int64) error
}

// Outcome summarizes how a closure went.
type Outcome string

const (
	// OutcomeSuccess means the request closed and every reward landed.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomePartialSuccess means the request closed but at least one
	// reward write failed.
	OutcomePartialSuccess Outcome = "PARTIAL_SUCCESS"
	// OutcomeFailed means the request is not closed.
	OutcomeFailed Outcome = "FAILED"
)

// Result reports what a Close call actually accomplished.
type Result struct {
	Outcome        Outcome
	RequestClosed  bool
	HelpersAwarded bool
	CreatorAwarded bool
	Err            error
}

type Closer struct {
	requests RequestStore
	profiles ProfileStore
}

func New(requests RequestStore, profiles ProfileStore) *Closer {
	return &Closer{
		requests: requests,
		profiles: profiles,
	}
}

// Close runs the full closure flow on behalf of callerID, who must be the
// request's creator. selectedHelperIDs names the helpers who earn kudos;
// an empty selection closes the request without rewards.
func (c *Closer) Close(ctx context.Context, callerID, requestID string, selectedHelperIDs []string) *Result {
	creatorBonus, err := c.requests.CloseRequest(ctx, callerID, requestID, selectedHelperIDs)
	if err != nil {
		return &Result{
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("while closing request %s: %w", requestID, err),
		}
	}

	result := &Result{
		Outcome:       OutcomeSuccess,
		RequestClosed: true,
	}

	if len(selectedHelperIDs) > 0 {
		awards := map[string]int64{}
		for _, helperID := range selectedHelperIDs {
			awards[helperID] = KudosPerHelper
		}
		if err := c.profiles.AwardKudosBatch(ctx, awards); err != nil {
			slog.WarnContext(ctx, "Request closed but helper kudos failed", slog.String("request", requestID), slog.Any("err", err))
			result.Outcome = OutcomePartialSuccess
			result.Err = fmt.Errorf("while awarding helper kudos: %w", err)
		} else {
			result.HelpersAwarded = true
		}
	}

	if creatorBonus {
		if err := c.profiles.AwardKudos(ctx, callerID, KudosForCreatorResolution); err != nil {
			slog.WarnContext(ctx, "Request closed but creator bonus failed", slog.String("request", requestID), slog.Any("err", err))
			result.Outcome = OutcomePartialSuccess
			if result.Err == nil {
				result.Err = fmt.Errorf("while awarding creator bonus: %w", err)
			}
		} else {
			result.CreatorAwarded = true
		}
	}

	if len(selectedHelperIDs) > 0 {
		if err := c.profiles.ReceiveHelp(ctx, callerID, HelpReceivedPerHelp); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("while recording received help: %w", err)
			return result
		}
	}

	return result
}
