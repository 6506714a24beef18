// Package orchestrator drives the lifecycle of one guest interview
// session: it resolves on startup whether to resume, treat the interview
// as already finished, or auto-start a fresh one, and thereafter mediates
// every state-changing operation against the conversation engine while
// keeping the in-memory session and the local checkpoint store consistent
// with the backend's authoritative record.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pipecast/interview/internal/checkpoint"
	"github.com/pipecast/interview/internal/session"
	"github.com/pipecast/interview/internal/transport"
)

// Outcome is the single entry path chosen by startup resolution.
type Outcome string

const (
	OutcomeAlreadyComplete Outcome = "already_complete"
	OutcomeResuming        Outcome = "resuming"
	OutcomeIdleReady       Outcome = "idle_ready"
)

// Op names a public operation for per-operation status reporting.
type Op string

const (
	OpStart    Op = "start"
	OpSend     Op = "send"
	OpResume   Op = "resume"
	OpComplete Op = "complete"
	OpPause    Op = "pause"
	OpRestart  Op = "restart"
	OpSummary  Op = "summary"
)

const (
	defaultAutoStartDelay = 2 * time.Second
	defaultWelcome        = "Hi! I'm excited to learn about your story and help build your media kit. Let's start simple: what do you do?"

	// auto-save marker cadence (the unconditional checkpoint write is the
	// actual durability mechanism; this only paces the bookkeeping signal)
	autoSaveMessageInterval = 10
	autoSaveTimeInterval    = 5 * time.Minute
)

// Options configures an Orchestrator.
type Options struct {
	CampaignID string
	// Onboarding enables the completed-session pre-check during startup
	// resolution.
	Onboarding bool
	// AutoStartDelay is the single-shot debounce before a fresh session is
	// started from idle_ready. Zero means the 2s default.
	AutoStartDelay time.Duration
}

type opState struct {
	pending bool
	lastErr error
}

// Orchestrator is the sole mutator of its ConversationSession. Public
// operations serialize their state transitions through one mutex; network
// calls happen outside it, and every response is re-validated against the
// session epoch before it is applied so a reply that raced a restart is
// discarded instead of mutating the wrong conversation.
type Orchestrator struct {
	api   *transport.Client
	store checkpoint.Store

	campaignID     string
	onboarding     bool
	autoStartDelay time.Duration

	mu      sync.Mutex
	sess    session.ConversationSession
	outcome Outcome
	// epoch increments on restart; in-flight responses from an older epoch
	// are dropped on arrival.
	epoch int
	ops   map[Op]*opState

	autoStartTimer *time.Timer
	closed         bool

	msgsSinceMark int
	lastMark      time.Time

	now func() time.Time
}

// New creates an orchestrator for one campaign's interview session.
func New(api *transport.Client, store checkpoint.Store, opts Options) *Orchestrator {
	delay := opts.AutoStartDelay
	if delay <= 0 {
		delay = defaultAutoStartDelay
	}
	o := &Orchestrator{
		api:            api,
		store:          store,
		campaignID:     opts.CampaignID,
		onboarding:     opts.Onboarding,
		autoStartDelay: delay,
		ops:            make(map[Op]*opState),
		now:            time.Now,
	}
	o.sess.Connection = session.StatusConnecting
	o.lastMark = o.now()
	return o
}

// Close tears the orchestrator down, cancelling any pending auto-start.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cancelAutoStartLocked()
}

// Session returns a deep copy of the current session state.
func (o *Orchestrator) Session() session.ConversationSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.Clone()
}

// Outcome returns the entry path chosen by startup resolution, or the
// empty string before Resolve has run.
func (o *Orchestrator) Outcome() Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcome
}

// OpStatus reports whether op is in flight and the error from its last
// completed invocation, so the presentation layer can disable controls
// per operation instead of globally.
func (o *Orchestrator) OpStatus(op Op) (pending bool, lastErr error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.ops[op]; ok {
		return st.pending, st.lastErr
	}
	return false, nil
}

func (o *Orchestrator) beginOp(op Op) {
	st, ok := o.ops[op]
	if !ok {
		st = &opState{}
		o.ops[op] = st
	}
	st.pending = true
	st.lastErr = nil
}

func (o *Orchestrator) finishOp(op Op, err error) {
	st, ok := o.ops[op]
	if !ok {
		st = &opState{}
		o.ops[op] = st
	}
	st.pending = false
	st.lastErr = err
}

// writeProgressCheckpoint caches the current progress locally. Best
// effort: a failed write is logged and never fails the operation that
// triggered it.
func (o *Orchestrator) writeProgressCheckpointLocked(ctx context.Context) {
	rec := checkpoint.ProgressRecord{
		ConversationID: o.sess.ConversationID,
		Progress:       o.sess.Progress,
		Phase:          o.sess.Phase,
		LastSaved:      o.now(),
	}
	if err := o.store.SaveProgress(ctx, o.campaignID, rec); err != nil {
		log.Warn().Err(err).Str("campaign_id", o.campaignID).Msg("progress checkpoint write failed")
	}
}

// markAutoSaveLocked emits the auto-save bookkeeping signal every ten
// messages or five minutes, whichever comes first.
func (o *Orchestrator) markAutoSaveLocked() {
	o.msgsSinceMark++
	if o.msgsSinceMark < autoSaveMessageInterval && o.now().Sub(o.lastMark) < autoSaveTimeInterval {
		return
	}
	log.Info().
		Str("campaign_id", o.campaignID).
		Str("conversation_id", o.sess.ConversationID).
		Int("messages", len(o.sess.Messages)).
		Int("progress", o.sess.Progress).
		Msg("conversation auto-save mark")
	o.msgsSinceMark = 0
	o.lastMark = o.now()
}
