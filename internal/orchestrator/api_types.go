package orchestrator

import (
	"fmt"
	"net/url"

	"github.com/pipecast/interview/internal/session"
)

// Wire payloads for the campaign chatbot endpoints. Only the fields the
// orchestrator reads are declared; everything else in a response is ignored.

type completedCheckResponse struct {
	Found bool `json:"found"`
}

type latestCheckResponse struct {
	ConversationID string `json:"conversation_id"`
	IsComplete     bool   `json:"is_complete"`
}

type startResponse struct {
	ConversationID string `json:"conversation_id"`
	InitialMessage string `json:"initial_message"`
}

type messageResponse struct {
	BotMessage         string   `json:"bot_message"`
	QuickReplies       []string `json:"quick_replies"`
	Progress           *int     `json:"progress"`
	Phase              string   `json:"phase"`
	KeywordsFound      int      `json:"keywords_found"`
	ReadyForCompletion bool     `json:"ready_for_completion"`
}

type historyMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type extractedData struct {
	Keywords session.ExtractedKeywords `json:"keywords"`
}

type resumeResponse struct {
	ConversationID string           `json:"conversation_id"`
	IsComplete     bool             `json:"is_complete"`
	Messages       []historyMessage `json:"messages"`
	Progress       int              `json:"progress"`
	Phase          string           `json:"phase"`
	ExtractedData  *extractedData   `json:"extracted_data"`
	AlreadyActive  bool             `json:"already_active"`
	MessageCount   int              `json:"message_count"`
}

type completeResponse struct {
	KeywordsExtracted int `json:"keywords_extracted"`
}

func (o *Orchestrator) chatbotPath(suffix string) string {
	return fmt.Sprintf("/campaigns/%s/chatbot/%s", url.PathEscape(o.campaignID), suffix)
}
