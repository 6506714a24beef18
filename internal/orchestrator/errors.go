package orchestrator

import "errors"

var (
	// ErrNoConversation means a mutating operation was called before a
	// conversation exists. This is a caller contract violation, not a
	// retryable network condition.
	ErrNoConversation = errors.New("orchestrator: no active conversation")

	// ErrSessionComplete means a mutating operation was called on a
	// session already marked complete. Only restart may proceed from here.
	ErrSessionComplete = errors.New("orchestrator: session already complete")

	// ErrConversationGone means the backend no longer knows the
	// conversation a send targeted, most likely because it was completed
	// through another channel. Terminal; retrying the send is pointless.
	ErrConversationGone = errors.New("orchestrator: conversation no longer exists")
)
