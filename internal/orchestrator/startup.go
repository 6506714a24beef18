package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pipecast/interview/internal/session"
	"github.com/pipecast/interview/internal/transport"
)

// Resolve performs the two startup existence checks and lands the session
// in exactly one of already_complete, resuming or idle_ready. The checks
// run concurrently and the decision gates on both: a found completed
// session wins regardless of which check answered first, and the resume
// call is only issued once that is known. A 404 from either check is a
// normal "no such session" signal, never an error.
//
// From idle_ready a fresh session is not started immediately; a single
// debounce timer is armed instead (see autoStartFire).
func (o *Orchestrator) Resolve(ctx context.Context) (Outcome, error) {
	var (
		wg        sync.WaitGroup
		completed completedCheckResponse
		latest    latestCheckResponse
		hasLatest bool
	)

	if o.onboarding {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := o.api.Get(ctx, o.chatbotPath("latest-completed"))
			if err != nil {
				if !transport.IsNotFound(err) {
					log.Warn().Err(err).Str("campaign_id", o.campaignID).Msg("completed-session check failed")
				}
				return
			}
			if err := resp.JSON(&completed); err != nil {
				log.Warn().Err(err).Msg("completed-session check returned malformed payload")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := o.api.Get(ctx, o.chatbotPath("latest"))
		if err != nil {
			if !transport.IsNotFound(err) {
				log.Warn().Err(err).Str("campaign_id", o.campaignID).Msg("resumable-session check failed")
			}
			return
		}
		if err := resp.JSON(&latest); err != nil {
			log.Warn().Err(err).Msg("resumable-session check returned malformed payload")
			return
		}
		hasLatest = latest.ConversationID != ""
	}()

	wg.Wait()

	if o.onboarding && completed.Found {
		// A finished interview exists. Do not load its messages; the live
		// chat view never renders a completed session.
		o.mu.Lock()
		o.sess.IsComplete = true
		o.sess.Connection = session.StatusConnected
		o.outcome = OutcomeAlreadyComplete
		o.mu.Unlock()
		log.Info().Str("campaign_id", o.campaignID).Msg("interview already completed")
		return OutcomeAlreadyComplete, nil
	}

	if hasLatest {
		if latest.IsComplete {
			// The resumable endpoint can surface a session that was
			// completed through another channel. Same terminal branch,
			// still without loading messages.
			o.mu.Lock()
			o.sess.IsComplete = true
			o.sess.Connection = session.StatusConnected
			o.outcome = OutcomeAlreadyComplete
			o.mu.Unlock()
			return OutcomeAlreadyComplete, nil
		}

		o.mu.Lock()
		o.outcome = OutcomeResuming
		o.mu.Unlock()
		if err := o.ResumeConversation(ctx, latest.ConversationID); err != nil {
			// Soft failure: the session stays usable so the caller can
			// still offer a brand-new interview.
			log.Warn().Err(err).Str("conversation_id", latest.ConversationID).Msg("startup resume failed")
		}
		return OutcomeResuming, nil
	}

	o.mu.Lock()
	o.outcome = OutcomeIdleReady
	o.armAutoStartLocked()
	o.mu.Unlock()
	return OutcomeIdleReady, nil
}

// armAutoStartLocked schedules the delayed fresh start. Callers hold o.mu.
func (o *Orchestrator) armAutoStartLocked() {
	o.cancelAutoStartLocked()
	o.autoStartTimer = time.AfterFunc(o.autoStartDelay, o.autoStartFire)
	log.Debug().Dur("delay", o.autoStartDelay).Msg("auto-start timer armed")
}

func (o *Orchestrator) cancelAutoStartLocked() {
	if o.autoStartTimer != nil {
		o.autoStartTimer.Stop()
		o.autoStartTimer = nil
	}
}

// autoStartFire runs when the debounce elapses. Preconditions are
// re-validated at fire time: if a conversation id appeared in the
// meantime (a slow resume, a manual start, a second mount) or the session
// turned complete, the deferred start must not execute.
func (o *Orchestrator) autoStartFire() {
	o.mu.Lock()
	if o.closed || o.sess.ConversationID != "" || o.sess.IsComplete {
		o.mu.Unlock()
		log.Debug().Msg("auto-start skipped: preconditions no longer hold")
		return
	}
	o.autoStartTimer = nil
	o.mu.Unlock()

	if err := o.StartConversation(context.Background()); err != nil {
		log.Error().Err(err).Str("campaign_id", o.campaignID).Msg("auto-start failed")
	}
}
