package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger for CLI use.
func Setup(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// TranscriptLogger writes a plain-text transcript of a single conversation
// to a file, one line per exchange. It is safe for concurrent use.
type TranscriptLogger struct {
	conversationID string
	logFile        *os.File
	mutex          sync.Mutex
	startTime      time.Time
}

// StartTranscript opens a transcript file for the given conversation under dir.
// The directory is created if it does not exist.
func StartTranscript(dir, conversationID string) (*TranscriptLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(dir, fmt.Sprintf("interview_%s_%s.log", conversationID, timestamp))

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	t := &TranscriptLogger{
		conversationID: conversationID,
		logFile:        logFile,
		startTime:      time.Now(),
	}
	t.writeHeader()
	return t, nil
}

func (t *TranscriptLogger) writeHeader() {
	t.logFile.WriteString(fmt.Sprintf("Conversation: %s\n", t.conversationID))
	t.logFile.WriteString(fmt.Sprintf("Started: %s\n", t.startTime.Format(time.RFC3339)))
	t.logFile.WriteString("----------------------------------------\n")
}

// Log writes a timestamped line to the transcript.
func (t *TranscriptLogger) Log(format string, args ...interface{}) {
	if t == nil {
		return
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	elapsed := time.Since(t.startTime)
	message := fmt.Sprintf(format, args...)

	t.logFile.WriteString(fmt.Sprintf("[%s] [+%v] %s\n", timestamp, elapsed.Round(time.Millisecond), message))
	t.logFile.Sync()
}

// LogExchange records one side of the conversation.
func (t *TranscriptLogger) LogExchange(sender, text string) {
	if t == nil {
		return
	}
	t.Log("%s: %s", sender, text)
}

// Close finalizes and closes the transcript file.
func (t *TranscriptLogger) Close() error {
	if t == nil || t.logFile == nil {
		return nil
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.logf("Session ended after %v", time.Since(t.startTime).Round(time.Second))
	return t.logFile.Close()
}

// logf writes without taking the mutex; callers must hold it.
func (t *TranscriptLogger) logf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	t.logFile.WriteString(fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), message))
}
