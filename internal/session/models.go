package session

import (
	"time"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// DeliveryState tracks the two-phase lifecycle of an optimistically
// appended user message: pending until the backend acknowledges the send,
// then confirmed, or failed in place if the send errored. Failed messages
// are never removed so the user does not have to retype them.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// ConnectionStatus reflects the health of the startup existence checks and
// the last mutating call, not per-message transport errors.
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
	StatusError      ConnectionStatus = "error"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	ID           string        `json:"id"`
	Text         string        `json:"text"`
	Sender       Sender        `json:"sender"`
	Timestamp    time.Time     `json:"timestamp"`
	QuickReplies []string      `json:"quick_replies,omitempty"`
	Delivery     DeliveryState `json:"delivery,omitempty"`
}

// ConversationSession is the in-memory mirror of one interview session.
// The orchestrator is its sole mutator; everything else reads snapshots.
type ConversationSession struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []Message        `json:"messages"`
	Progress       int              `json:"progress"`
	Phase          string           `json:"phase"`
	KeywordsCount  int              `json:"keywords_count"`
	IsComplete     bool             `json:"is_complete"`
	Connection     ConnectionStatus `json:"connection_status"`
}

// ExtractedKeywords holds the keyword buckets nested under a resume
// payload's extracted_data field.
type ExtractedKeywords struct {
	Explicit   []string `json:"explicit"`
	Implicit   []string `json:"implicit"`
	Contextual []string `json:"contextual"`
}

// Count sums all three buckets.
func (k ExtractedKeywords) Count() int {
	return len(k.Explicit) + len(k.Implicit) + len(k.Contextual)
}

// MergeProgress applies a server-reported progress value. The server is
// authoritative but the local value never decreases.
func (s *ConversationSession) MergeProgress(p int) {
	if p > s.Progress {
		s.Progress = p
	}
}

// Append adds a message to the end of the transcript.
func (s *ConversationSession) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// Replace swaps the whole transcript, used on resume and restart.
func (s *ConversationSession) Replace(msgs []Message) {
	s.Messages = msgs
}

// LastMessage returns the newest transcript entry, or nil when empty.
func (s *ConversationSession) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Clone returns a deep copy safe to hand to readers while the orchestrator
// keeps mutating the original.
func (s *ConversationSession) Clone() ConversationSession {
	out := *s
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
		for i := range out.Messages {
			if qr := s.Messages[i].QuickReplies; qr != nil {
				out.Messages[i].QuickReplies = append([]string(nil), qr...)
			}
		}
	}
	return out
}
