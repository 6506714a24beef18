package orchestrator

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipecast/interview/internal/session"
)

func TestStaleSendResponseDiscardedAfterRestart(t *testing.T) {
	env := startedEnv(t, Options{})

	release := make(chan struct{})
	env.backend.handle("message", func(w http.ResponseWriter, r *http.Request) {
		<-release
		jsonResponse(`{"bot_message": "late reply", "progress": 90}`)(w, r)
	})
	env.backend.handle("restart", jsonResponse(`{"conversation_id": "conv-2", "initial_message": "Fresh"}`))

	sendDone := make(chan error, 1)
	go func() {
		_, err := env.orch.SendMessage(context.Background(), "slow one")
		sendDone <- err
	}()

	// wait for the optimistic append, then restart while the send is
	// still blocked on the backend
	require.Eventually(t, func() bool {
		return len(env.orch.Session().Messages) == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, env.orch.RestartConversation(context.Background()))

	close(release)
	require.NoError(t, <-sendDone)

	// the late reply belongs to the old conversation and must not leak
	// into the new one
	sess := env.orch.Session()
	assert.Equal(t, "conv-2", sess.ConversationID)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "Fresh", sess.Messages[0].Text)
	assert.Zero(t, sess.Progress)
}

func TestStaleStartFailureDoesNotFlipConnection(t *testing.T) {
	env := newTestEnv(t, Options{AutoStartDelay: time.Hour})

	release := make(chan struct{})
	env.backend.handle("start", func(w http.ResponseWriter, r *http.Request) {
		<-release
		errorResponse(http.StatusInternalServerError, `{"detail": "boom"}`)(w, r)
	})
	env.backend.handle("restart", jsonResponse(`{"conversation_id": "conv-2", "initial_message": "Fresh"}`))

	startDone := make(chan error, 1)
	go func() {
		startDone <- env.orch.StartConversation(context.Background())
	}()

	// restart while the start call is still blocked on the backend
	require.Eventually(t, func() bool {
		return env.backend.callCount("start") == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, env.orch.RestartConversation(context.Background()))

	close(release)
	require.NoError(t, <-startDone)

	// the late start failure belongs to the old epoch and must not mark
	// the fresh session's connection as broken
	sess := env.orch.Session()
	assert.Equal(t, "conv-2", sess.ConversationID)
	assert.Equal(t, session.StatusConnected, sess.Connection)
}

func TestAutoSaveMarkResetsAfterTenMessages(t *testing.T) {
	env := startedEnv(t, Options{})
	env.backend.handle("message", jsonResponse(`{"bot_message": "ok"}`))

	for i := 0; i < autoSaveMessageInterval-1; i++ {
		_, err := env.orch.SendMessage(context.Background(), "answer")
		require.NoError(t, err)
	}
	env.orch.mu.Lock()
	count := env.orch.msgsSinceMark
	env.orch.mu.Unlock()
	assert.Equal(t, autoSaveMessageInterval-1, count)

	_, err := env.orch.SendMessage(context.Background(), "tenth")
	require.NoError(t, err)

	env.orch.mu.Lock()
	count = env.orch.msgsSinceMark
	env.orch.mu.Unlock()
	assert.Zero(t, count, "mark cadence resets after ten messages")
}

func TestAutoSaveMarkFiresOnElapsedTime(t *testing.T) {
	env := startedEnv(t, Options{})
	env.backend.handle("message", jsonResponse(`{"bot_message": "ok"}`))

	env.orch.mu.Lock()
	env.orch.lastMark = time.Now().Add(-autoSaveTimeInterval - time.Minute)
	env.orch.mu.Unlock()

	_, err := env.orch.SendMessage(context.Background(), "answer")
	require.NoError(t, err)

	env.orch.mu.Lock()
	defer env.orch.mu.Unlock()
	assert.Zero(t, env.orch.msgsSinceMark)
	assert.WithinDuration(t, time.Now(), env.orch.lastMark, time.Minute)
}
