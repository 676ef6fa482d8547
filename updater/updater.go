// Package updater is the periodic job that advances stored request
// statuses to match the passage of time: live requests enter their active
// window or age out into the archive, and cancelled requests are swept
// into the archive too. Completed requests are never touched.
package updater

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"reach-out/dbtypes"

	"cloud.google.com/go/firestore"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"google.golang.org/api/iterator"
)

// Firestore commits at most 500 writes per batch.
const maxBatchWrites = 500

// How many transitions the pass summary lists before truncating.
const summaryPreviewLimit = 10

// NextStatus computes the stored status a request should transition to at
// the given instant, and whether a transition is due at all. Requests with
// missing timestamps never transition on the time-based rules.
func NextStatus(status dbtypes.RequestStatus, start, expiration, now time.Time) (dbtypes.RequestStatus, bool) {
	switch status {
	case dbtypes.StatusCancelled:
		return dbtypes.StatusArchived, true
	case dbtypes.StatusOpen:
		if start.IsZero() || expiration.IsZero() {
			return status, false
		}
		if !start.After(now) && now.Before(expiration) {
			return dbtypes.StatusInProgress, true
		}
	case dbtypes.StatusInProgress:
		if expiration.IsZero() {
			return status, false
		}
		if !now.Before(expiration) {
			return dbtypes.StatusArchived, true
		}
	}
	return status, false
}

// Transition is one planned status change.
type Transition struct {
	RequestID string
	CreatorID string
	From      dbtypes.RequestStatus
	To        dbtypes.RequestStatus
}

// planTransitions inspects raw request documents and returns the
// transitions due at the given instant. Documents whose status or
// timestamps cannot be read are skipped and counted, never transitioned.
func planTransitions(docs map[string]map[string]interface{}, now time.Time) (transitions []Transition, skipped int) {
	for docID, data := range docs {
		rawStatus, ok := data["status"].(string)
		if !ok {
			skipped++
			continue
		}
		status, err := dbtypes.ParseRequestStatus(rawStatus)
		if err != nil {
			skipped++
			continue
		}

		start, _ := data["startTimeStamp"].(time.Time)
		expiration, _ := data["expirationTime"].(time.Time)

		next, due := NextStatus(status, start, expiration, now)
		if !due {
			continue
		}

		creatorID, _ := data["creatorId"].(string)
		transitions = append(transitions, Transition{
			RequestID: docID,
			CreatorID: creatorID,
			From:      status,
			To:        next,
		})
	}
	return transitions, skipped
}

// Summary reports what one updater pass did.
type Summary struct {
	Examined     int
	Transitioned int
	Skipped      int
	EmailsSent   int
	Preview      []Transition
}

// Updater runs status-transition passes against Firestore.
type Updater struct {
	firestoreClient *firestore.Client
	sendgridClient  *sendgrid.Client
	recheckPeriod   time.Duration
	dryRun          bool
}

// New wires an updater. sendgridClient may be nil to disable archive
// notification emails. recheckPeriod 0 means Run performs a single pass
// and returns.
func New(firestoreClient *firestore.Client, sendgridClient *sendgrid.Client, recheckPeriod time.Duration, dryRun bool) *Updater {
	return &Updater{
		firestoreClient: firestoreClient,
		sendgridClient:  sendgridClient,
		recheckPeriod:   recheckPeriod,
		dryRun:          dryRun,
	}
}

// Run executes passes until the context is cancelled, or exactly one pass
// when no recheck period is configured.
func (u *Updater) Run(ctx context.Context) error {
	if u.recheckPeriod == 0 {
		_, err := u.Pass(ctx)
		return err
	}

	ticker := time.NewTicker(u.recheckPeriod)
	defer ticker.Stop()

	// Pass once right away --- ticker doesn't fire until the tick period
	// has elapsed.
	if _, err := u.Pass(ctx); err != nil {
		slog.ErrorContext(ctx, "Error during updater pass", slog.Any("err", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := u.Pass(ctx); err != nil {
			slog.ErrorContext(ctx, "Error during updater pass", slog.Any("err", err))
		}
	}
}

// Pass runs one full scan-and-transition pass.
func (u *Updater) Pass(ctx context.Context) (*Summary, error) {
	slog.InfoContext(ctx, "Starting updater pass", slog.Bool("dryRun", u.dryRun))
	defer func() {
		slog.InfoContext(ctx, "Finished updater pass")
	}()

	now := time.Now()

	docs := map[string]map[string]interface{}{}
	iter := u.firestoreClient.Collection("requests").Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating requests: %w", err)
		}
		docs[snap.Ref.ID] = snap.Data()
	}

	transitions, skipped := planTransitions(docs, now)

	summary := &Summary{
		Examined:     len(docs),
		Transitioned: len(transitions),
		Skipped:      skipped,
	}
	for i, tr := range transitions {
		if i >= summaryPreviewLimit {
			break
		}
		summary.Preview = append(summary.Preview, tr)
	}

	if u.dryRun {
		for _, tr := range transitions {
			slog.InfoContext(ctx, "Would transition request", slog.String("request", tr.RequestID), slog.String("from", string(tr.From)), slog.String("to", string(tr.To)))
		}
		return summary, nil
	}

	if err := u.commitTransitions(ctx, transitions); err != nil {
		return nil, err
	}

	for _, tr := range transitions {
		if tr.From != dbtypes.StatusInProgress || tr.To != dbtypes.StatusArchived {
			continue
		}
		if err := u.notifyCreator(ctx, tr); err != nil {
			slog.WarnContext(ctx, "Error sending archive notification", slog.String("request", tr.RequestID), slog.Any("err", err))
			continue
		}
		summary.EmailsSent++
	}

	slog.InfoContext(ctx, "Updater pass summary",
		slog.Int("examined", summary.Examined),
		slog.Int("transitioned", summary.Transitioned),
		slog.Int("skipped", summary.Skipped),
		slog.Int("emailsSent", summary.EmailsSent))

	return summary, nil
}

func (u *Updater) commitTransitions(ctx context.Context, transitions []Transition) error {
	for len(transitions) > 0 {
		chunk := transitions
		if len(chunk) > maxBatchWrites {
			chunk = chunk[:maxBatchWrites]
		}
		transitions = transitions[len(chunk):]

		batch := u.firestoreClient.Batch()
		for _, tr := range chunk {
			batch.Update(u.firestoreClient.Collection("requests").Doc(tr.RequestID), []firestore.Update{
				{Path: "status", Value: string(tr.To)},
				{Path: "updatedAt", Value: firestore.ServerTimestamp},
			})
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("while committing transition batch: %w", err)
		}
	}
	return nil
}

const archiveEmailPlain = `Your help request has expired and was moved to the archive.

If you still need a hand, you can post it again from the app.
`

var archiveEmailTemplate = template.Must(template.New("email").Parse(archiveEmailPlain))

// notifyCreator mails a request's creator when their request ages out. The
// creator's email lives on the private profile; creators without one are
// silently skipped.
func (u *Updater) notifyCreator(ctx context.Context, tr Transition) error {
	if u.sendgridClient == nil || tr.CreatorID == "" {
		return nil
	}

	profileSnap, err := u.firestoreClient.Collection("private_profiles").Doc(tr.CreatorID).Get(ctx)
	if err != nil {
		return fmt.Errorf("while retrieving profile %s: %w", tr.CreatorID, err)
	}
	profile, err := dbtypes.ProfileFromDoc(profileSnap.Data())
	if err != nil {
		return fmt.Errorf("while unmarshaling profile %s: %w", tr.CreatorID, err)
	}
	if profile.Email == "" {
		return nil
	}

	message := mail.NewV3Mail()
	message.From = mail.NewEmail("Reach Out Bot", "bot@reach-out.app")
	message.Subject = "Your help request has expired"

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail("", profile.Email))
	message.Personalizations = append(message.Personalizations, personalization)

	textContent := &bytes.Buffer{}
	if err := archiveEmailTemplate.Execute(textContent, tr); err != nil {
		return fmt.Errorf("while templating plain-text email content: %w", err)
	}
	message.Content = append(message.Content, mail.NewContent("text/plain", textContent.String()))

	resp, err := u.sendgridClient.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through Sendgrid: %d %s", resp.StatusCode, resp.Body)
	}

	return nil
}
