package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pipecast/interview/internal/checkpoint"
	"github.com/pipecast/interview/internal/session"
	"github.com/pipecast/interview/internal/transport"
)

// SendResult carries the per-send flags the presentation layer reacts to.
// ReadyForCompletion is a backend hint that enough has been gathered to
// offer a "finish" action; it never marks the session complete by itself.
type SendResult struct {
	ReadyForCompletion bool
}

// StartConversation creates a fresh server-side session and seeds the
// transcript with the welcome message from the response.
func (o *Orchestrator) StartConversation(ctx context.Context) error {
	o.mu.Lock()
	if o.sess.IsComplete {
		// only restart may leave a completed session
		o.mu.Unlock()
		return ErrSessionComplete
	}
	o.beginOp(OpStart)
	o.cancelAutoStartLocked()
	epoch := o.epoch
	o.mu.Unlock()

	resp, err := o.api.Post(ctx, o.chatbotPath("start"), map[string]any{})

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch {
		log.Debug().Msg("discarding stale start response")
		o.finishOp(OpStart, nil)
		return nil
	}
	if err != nil {
		o.sess.Connection = session.StatusError
		o.finishOp(OpStart, err)
		return fmt.Errorf("failed to start conversation: %w", err)
	}

	var payload startResponse
	if err := resp.JSON(&payload); err != nil {
		o.sess.Connection = session.StatusError
		o.finishOp(OpStart, err)
		return fmt.Errorf("failed to start conversation: %w", err)
	}

	o.applyFreshSessionLocked(payload.ConversationID, payload.InitialMessage)
	o.writeProgressCheckpointLocked(ctx)
	o.finishOp(OpStart, nil)

	log.Info().
		Str("campaign_id", o.campaignID).
		Str("conversation_id", payload.ConversationID).
		Msg("conversation started")
	return nil
}

// applyFreshSessionLocked resets the session around a newly minted
// conversation id and its welcome message. Callers hold o.mu.
func (o *Orchestrator) applyFreshSessionLocked(conversationID, welcome string) {
	if welcome == "" {
		welcome = defaultWelcome
	}
	o.sess = session.ConversationSession{
		ConversationID: conversationID,
		Connection:     session.StatusConnected,
		Messages: []session.Message{{
			ID:        uuid.NewString(),
			Text:      welcome,
			Sender:    session.SenderBot,
			Timestamp: o.now(),
			Delivery:  session.DeliveryConfirmed,
		}},
	}
}

// SendMessage appends the user's text optimistically, posts it, and
// appends the bot reply from the response. The optimistic entry stays in
// the transcript even when the send fails; it is flagged failed in place
// so the user never has to retype.
//
// A nil-id or completed session is a caller contract violation and fails
// fast without touching the network. A 404 is terminal: the conversation
// no longer exists backend-side and the returned error matches
// ErrConversationGone.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (SendResult, error) {
	o.mu.Lock()
	if o.sess.ConversationID == "" {
		o.mu.Unlock()
		return SendResult{}, ErrNoConversation
	}
	if o.sess.IsComplete {
		o.mu.Unlock()
		return SendResult{}, ErrSessionComplete
	}

	o.beginOp(OpSend)
	userMsgID := uuid.NewString()
	o.sess.Append(session.Message{
		ID:        userMsgID,
		Text:      text,
		Sender:    session.SenderUser,
		Timestamp: o.now(),
		Delivery:  session.DeliveryPending,
	})
	epoch := o.epoch
	conversationID := o.sess.ConversationID
	o.mu.Unlock()

	resp, err := o.api.Post(ctx, o.chatbotPath("message"), map[string]any{
		"conversation_id": conversationID,
		"message":         text,
	})

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch {
		// A restart won the race; the transcript this send belonged to is
		// gone and the reply must not leak into the new session.
		log.Debug().Str("conversation_id", conversationID).Msg("discarding stale send response")
		o.finishOp(OpSend, nil)
		return SendResult{}, nil
	}

	if err != nil {
		o.markDeliveryLocked(userMsgID, session.DeliveryFailed)
		if transport.IsNotFound(err) {
			gone := fmt.Errorf("%w: %s", ErrConversationGone, conversationID)
			o.finishOp(OpSend, gone)
			return SendResult{}, gone
		}
		o.finishOp(OpSend, err)
		return SendResult{}, fmt.Errorf("failed to send message: %w", err)
	}

	var payload messageResponse
	if err := resp.JSON(&payload); err != nil {
		o.markDeliveryLocked(userMsgID, session.DeliveryFailed)
		o.finishOp(OpSend, err)
		return SendResult{}, fmt.Errorf("failed to send message: %w", err)
	}

	o.markDeliveryLocked(userMsgID, session.DeliveryConfirmed)
	o.sess.Append(session.Message{
		ID:           uuid.NewString(),
		Text:         payload.BotMessage,
		Sender:       session.SenderBot,
		Timestamp:    o.now(),
		QuickReplies: payload.QuickReplies,
		Delivery:     session.DeliveryConfirmed,
	})
	if payload.Progress != nil {
		o.sess.MergeProgress(*payload.Progress)
	}
	if payload.Phase != "" {
		o.sess.Phase = payload.Phase
	}
	if payload.KeywordsFound > 0 {
		o.sess.KeywordsCount += payload.KeywordsFound
	}

	o.writeProgressCheckpointLocked(ctx)
	o.markAutoSaveLocked()
	o.finishOp(OpSend, nil)

	return SendResult{ReadyForCompletion: payload.ReadyForCompletion}, nil
}

func (o *Orchestrator) markDeliveryLocked(msgID string, state session.DeliveryState) {
	for i := range o.sess.Messages {
		if o.sess.Messages[i].ID == msgID {
			o.sess.Messages[i].Delivery = state
			return
		}
	}
}

// ResumeConversation recovers an open session from the backend. With an
// empty explicitID the backend resolves the campaign's resumable session
// itself.
//
// A resume that reports the conversation complete (flagged payload or the
// structured already-complete rejection) lands in the terminal branch:
// the returned history is discarded because a completed session is never
// rendered through the live chat view. Any other failure leaves the
// connection in connected so the caller can still offer a fresh start.
func (o *Orchestrator) ResumeConversation(ctx context.Context, explicitID string) error {
	o.mu.Lock()
	o.beginOp(OpResume)
	epoch := o.epoch
	o.mu.Unlock()

	body := map[string]any{}
	if explicitID != "" {
		body["conversation_id"] = explicitID
	}
	resp, err := o.api.Post(ctx, o.chatbotPath("resume"), body)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch {
		log.Debug().Msg("discarding stale resume response")
		o.finishOp(OpResume, nil)
		return nil
	}

	if err != nil {
		if transport.IsAlreadyComplete(err) {
			o.sess.IsComplete = true
			o.sess.Connection = session.StatusConnected
			o.finishOp(OpResume, nil)
			log.Info().Str("campaign_id", o.campaignID).Msg("resume reported conversation already complete")
			return nil
		}
		o.sess.Connection = session.StatusConnected
		o.finishOp(OpResume, err)
		return fmt.Errorf("failed to resume conversation: %w", err)
	}

	var payload resumeResponse
	if err := resp.JSON(&payload); err != nil {
		o.sess.Connection = session.StatusConnected
		o.finishOp(OpResume, err)
		return fmt.Errorf("failed to resume conversation: %w", err)
	}

	if payload.IsComplete {
		o.sess.IsComplete = true
		o.sess.Connection = session.StatusConnected
		o.finishOp(OpResume, nil)
		return nil
	}

	msgs := make([]session.Message, 0, len(payload.Messages))
	for i, hm := range payload.Messages {
		sender := session.SenderUser
		if hm.Type == "bot" {
			sender = session.SenderBot
		}
		ts, err := time.Parse(time.RFC3339, hm.Timestamp)
		if err != nil {
			ts = o.now()
		}
		msgs = append(msgs, session.Message{
			ID:        fmt.Sprintf("hist-%d", i),
			Text:      hm.Content,
			Sender:    sender,
			Timestamp: ts,
			Delivery:  session.DeliveryConfirmed,
		})
	}

	o.sess.ConversationID = payload.ConversationID
	o.sess.Replace(msgs)
	// backend history overrides anything cached locally
	o.sess.Progress = payload.Progress
	o.sess.Phase = payload.Phase
	if payload.ExtractedData != nil {
		o.sess.KeywordsCount = payload.ExtractedData.Keywords.Count()
	} else {
		o.sess.KeywordsCount = 0
	}
	o.sess.IsComplete = false
	o.sess.Connection = session.StatusConnected

	o.writeProgressCheckpointLocked(ctx)
	o.finishOp(OpResume, nil)

	log.Info().
		Str("conversation_id", payload.ConversationID).
		Int("messages", len(msgs)).
		Int("progress", payload.Progress).
		Msg("conversation resumed")
	return nil
}

// CompleteConversation finishes the interview. On success the session is
// terminal and the progress checkpoint is cleared; a completed session has
// no business being resumed from local cache. On failure nothing changes
// and the caller may retry.
func (o *Orchestrator) CompleteConversation(ctx context.Context) error {
	o.mu.Lock()
	if o.sess.ConversationID == "" {
		o.mu.Unlock()
		return ErrNoConversation
	}
	o.beginOp(OpComplete)
	epoch := o.epoch
	conversationID := o.sess.ConversationID
	o.mu.Unlock()

	resp, err := o.api.Post(ctx, o.chatbotPath("complete"), map[string]any{
		"conversation_id": conversationID,
	})

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch {
		log.Debug().Msg("discarding stale complete response")
		o.finishOp(OpComplete, nil)
		return nil
	}
	if err != nil {
		o.finishOp(OpComplete, err)
		return fmt.Errorf("failed to complete conversation: %w", err)
	}

	var payload completeResponse
	if err := resp.JSON(&payload); err != nil {
		log.Debug().Err(err).Msg("complete response carried no readable payload")
	}

	o.sess.IsComplete = true
	if err := o.store.ClearProgress(ctx, o.campaignID); err != nil {
		log.Warn().Err(err).Str("campaign_id", o.campaignID).Msg("failed to clear progress checkpoint")
	}
	o.finishOp(OpComplete, nil)

	log.Info().
		Str("conversation_id", conversationID).
		Int("keywords_extracted", payload.KeywordsExtracted).
		Msg("conversation completed")
	return nil
}

// PauseConversation records a deliberate pause. The transcript, progress
// and phase are untouched; the only effect is the distinct paused
// checkpoint so a later session can tell a graceful pause from an
// abandoned interview.
func (o *Orchestrator) PauseConversation(ctx context.Context) error {
	o.mu.Lock()
	if o.sess.ConversationID == "" {
		o.mu.Unlock()
		return ErrNoConversation
	}
	if o.sess.IsComplete {
		o.mu.Unlock()
		return ErrSessionComplete
	}
	o.beginOp(OpPause)
	conversationID := o.sess.ConversationID
	messageCount := len(o.sess.Messages)
	progress := o.sess.Progress
	o.mu.Unlock()

	path := o.chatbotPath("pause") + "?conversation_id=" + url.QueryEscape(conversationID)
	_, err := o.api.Post(ctx, path, nil)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.finishOp(OpPause, err)
		return fmt.Errorf("failed to pause conversation: %w", err)
	}

	rec := checkpoint.PausedRecord{
		ConversationID: conversationID,
		PausedAt:       o.now(),
		MessageCount:   messageCount,
		Progress:       progress,
	}
	if err := o.store.SavePaused(ctx, o.campaignID, rec); err != nil {
		log.Warn().Err(err).Str("campaign_id", o.campaignID).Msg("paused checkpoint write failed")
	}
	o.finishOp(OpPause, nil)

	log.Info().Str("conversation_id", conversationID).Int("progress", progress).Msg("conversation paused")
	return nil
}

// RestartConversation abandons the current session end to end: the backend
// mints a new conversation, all local state and both checkpoint records
// for the campaign are discarded, and the session reinitializes exactly as
// a fresh start does. This is the only operation that leaves a completed
// state.
func (o *Orchestrator) RestartConversation(ctx context.Context) error {
	o.mu.Lock()
	o.beginOp(OpRestart)
	o.cancelAutoStartLocked()
	o.mu.Unlock()

	resp, err := o.api.Post(ctx, o.chatbotPath("restart"), map[string]any{})

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.finishOp(OpRestart, err)
		return fmt.Errorf("failed to restart conversation: %w", err)
	}

	var payload startResponse
	if err := resp.JSON(&payload); err != nil {
		o.finishOp(OpRestart, err)
		return fmt.Errorf("failed to restart conversation: %w", err)
	}

	// Invalidate every response still in flight against the old session.
	o.epoch++
	o.msgsSinceMark = 0
	o.lastMark = o.now()

	o.applyFreshSessionLocked(payload.ConversationID, payload.InitialMessage)

	if err := o.store.ClearProgress(ctx, o.campaignID); err != nil {
		log.Warn().Err(err).Msg("failed to clear progress checkpoint on restart")
	}
	if err := o.store.ClearPaused(ctx, o.campaignID); err != nil {
		log.Warn().Err(err).Msg("failed to clear paused checkpoint on restart")
	}
	o.finishOp(OpRestart, nil)

	log.Info().
		Str("campaign_id", o.campaignID).
		Str("conversation_id", payload.ConversationID).
		Msg("conversation restarted")
	return nil
}

// GetSummary fetches the interview summary document for the current
// conversation. Read-only; the payload shape is owned by the backend and
// handed to the presentation layer as-is.
func (o *Orchestrator) GetSummary(ctx context.Context) (map[string]any, error) {
	o.mu.Lock()
	if o.sess.ConversationID == "" {
		o.mu.Unlock()
		return nil, ErrNoConversation
	}
	o.beginOp(OpSummary)
	conversationID := o.sess.ConversationID
	o.mu.Unlock()

	path := o.chatbotPath("summary") + "?conversation_id=" + url.QueryEscape(conversationID)
	resp, err := o.api.Get(ctx, path)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.finishOp(OpSummary, err)
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}

	var payload map[string]any
	if err := resp.JSON(&payload); err != nil {
		o.finishOp(OpSummary, err)
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}
	o.finishOp(OpSummary, nil)
	return payload, nil
}
