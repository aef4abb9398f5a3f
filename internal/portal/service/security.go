package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

// ReplayAlertHandler turns a replay event into a security log line and an
// email to the affected user and the firm inbox.
func ReplayAlertHandler(st store.Store, q Enqueuer, inbox Inbox) tasks.Handler {
	return func(ctx context.Context, t tasks.Task) error {
		var ev tasks.ReplayEvent
		if err := t.Decode(&ev); err != nil {
			return err
		}

		slogx.FromContext(ctx).Warn("security event: refresh token replay",
			"user_id", ev.UserID,
			"revoked", ev.Revoked,
			"ip", ev.IP,
			"at", ev.At,
		)

		body := fmt.Sprintf("A previously used sign-in token was presented at %s from %s.\n"+
			"All mobile sessions from that sign-in have been ended. Sign in again on your device.\n", ev.At, ev.IP)

		u, err := st.Users().GetUserByID(ctx, ev.UserID)
		if err == nil {
			sendEmail(ctx, q, tasks.Email{
				To:      []string{u.Email},
				Subject: "Security alert: your mobile session was ended",
				Body:    body,
			})
		}
		notifyFirm(ctx, q, inbox, tasks.Email{
			Subject: "Security alert: refresh token replay for user " + ev.UserID,
			Body:    body,
		})
		return nil
	}
}

// IntegrityAlertHandler reports a document that failed authentication on
// download to the firm inbox. The stored blob is left in place for review.
func IntegrityAlertHandler(q Enqueuer, inbox Inbox) tasks.Handler {
	return func(ctx context.Context, t tasks.Task) error {
		var ev tasks.IntegrityEvent
		if err := t.Decode(&ev); err != nil {
			return err
		}

		slogx.FromContext(ctx).Error("security event: document integrity failure",
			"document_id", ev.DocumentID,
			"owner_id", ev.OwnerID,
			"actor_id", ev.ActorID,
			"at", ev.At,
		)

		notifyFirm(ctx, q, inbox, tasks.Email{
			Subject: "Security alert: document " + ev.DocumentID + " failed its integrity check",
			Body: fmt.Sprintf("Document %s owned by %s could not be authenticated when %s downloaded it at %s.\n"+
				"The stored copy may have been altered or corrupted and should be restored from backup.\n",
				ev.DocumentID, ev.OwnerID, ev.ActorID, ev.At),
		})
		return nil
	}
}
