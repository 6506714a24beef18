package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found": true, "conversation_id": "conv-9"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	resp, err := c.Get(context.Background(), "/campaigns/c1/chatbot/latest-completed")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, http.StatusOK, resp.Status)

	var body struct {
		Found          bool   `json:"found"`
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, resp.JSON(&body))
	assert.True(t, body.Found)
	assert.Equal(t, "conv-9", body.ConversationID)
}

func TestPostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, readJSON(r, &body))
		assert.Equal(t, "hello", body["message"])
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.Post(context.Background(), "/campaigns/c1/chatbot/message", map[string]string{"message": "hello"})
	require.NoError(t, err)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"plain 404", http.StatusNotFound, `{"detail": "conversation not found"}`, KindNotFound},
		{"already complete via detail", http.StatusBadRequest, `{"detail": "Conversation has been completed"}`, KindAlreadyComplete},
		{"already complete via error field", http.StatusConflict, `{"error": "session already complete"}`, KindAlreadyComplete},
		{"unauthorized", http.StatusUnauthorized, `{"message": "invalid token"}`, KindUnauthorized},
		{"server error", http.StatusInternalServerError, `{"detail": "boom"}`, KindOther},
		{"unparseable body", http.StatusBadGateway, `<html>bad gateway</html>`, KindOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "tok")
			resp, err := c.Get(context.Background(), "/x")
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.False(t, resp.OK)
			assert.Equal(t, tc.status, resp.Status)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.kind, apiErr.Kind)
		})
	}
}

func TestKindHelpers(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{Kind: KindNotFound, Status: 404}))
	assert.False(t, IsNotFound(&APIError{Kind: KindOther, Status: 500}))
	assert.True(t, IsAlreadyComplete(&APIError{Kind: KindAlreadyComplete, Status: 400}))
	assert.True(t, IsUnauthorized(&APIError{Kind: KindUnauthorized}))
	assert.False(t, IsNotFound(nil))
}

func TestExpiredJWTFailsBeforeRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "guest-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := NewClient(srv.URL, signed)
	_, err = c.Get(context.Background(), "/x")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, called, "expired token must not produce a network call")
}

func TestOpaqueTokenIsNotValidatedLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-opaque-api-key")
	_, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
