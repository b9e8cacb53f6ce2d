package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

type recordingSender struct {
	mu       sync.Mutex
	messages []*Message
	err      error
	block    chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg *Message) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSender) all() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.messages...)
}

func TestNotifier_PasswordAdded(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, testLogger())

	n.PasswordAdded("alice@example.com", "alice", "github")
	n.Wait()

	msgs := sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice@example.com", msgs[0].To)
	assert.Equal(t, "New Password Added Successfully!", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Dear alice")
	assert.Contains(t, msgs[0].Body, "github")
}

func TestNotifier_PasswordUpdated(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, testLogger())

	n.PasswordUpdated("alice@example.com", "alice", "github")
	n.Wait()

	msgs := sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Password Updated for github", msgs[0].Subject)
}

func TestNotifier_DispatchDoesNotBlockCaller(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	n := NewNotifier(sender, testLogger())

	start := time.Now()
	n.Welcome("alice@example.com", "alice")
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond, "dispatch must not wait for delivery")
	close(sender.block)
	n.Wait()
}

func TestNotifier_DeliveryFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	n := NewNotifier(sender, testLogger())

	assert.NotPanics(t, func() {
		n.PasswordAdded("alice@example.com", "alice", "github")
		n.Wait()
	})
}

func TestNotifier_NilSenderAndEmptyRecipientAreNoOps(t *testing.T) {
	n := NewNotifier(nil, testLogger())
	n.PasswordAdded("alice@example.com", "alice", "github")
	n.Wait()

	sender := &recordingSender{}
	n = NewNotifier(sender, testLogger())
	n.PasswordAdded("", "alice", "github")
	n.Wait()
	assert.Empty(t, sender.all())
}

func TestBuildEmailBody(t *testing.T) {
	body := string(buildEmailBody("from@x", "to@y", "Subject!", "hello"))
	assert.Contains(t, body, "From: from@x\r\n")
	assert.Contains(t, body, "To: to@y\r\n")
	assert.Contains(t, body, "Subject: Subject!\r\n")
	assert.Contains(t, body, "\r\n\r\nhello")
}
