// Package notification delivers best-effort account emails. The core hands
// a message off and moves on: delivery runs in its own goroutine with its
// own deadline, failures are logged and never propagate to the operation
// that triggered them.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mvolkovs/passvault/internal/logging"
)

// Message is one notification to deliver.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender is the delivery backend for notifications.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

const sendTimeout = 10 * time.Second

// Notifier dispatches messages asynchronously. A nil Sender disables
// notifications entirely; every method stays a cheap no-op.
type Notifier struct {
	sender Sender
	logger logging.Logger
	wg     sync.WaitGroup
}

func NewNotifier(sender Sender, logger logging.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger.With("module", "notification")}
}

// PasswordAdded notifies the account owner that a new secret was stored.
func (n *Notifier) PasswordAdded(email, username, siteName string) {
	n.dispatch(email, "New Password Added Successfully!",
		fmt.Sprintf("Dear %s,\n\nWe are pleased to inform you that a new password for %s has been added to your account successfully.\n\nThank you for entrusting us with your password management needs.\n\nBest regards,\nTeam Password Manager", username, siteName))
}

// PasswordUpdated notifies the account owner that a secret was replaced.
func (n *Notifier) PasswordUpdated(email, username, siteName string) {
	n.dispatch(email, fmt.Sprintf("Password Updated for %s", siteName),
		fmt.Sprintf("Dear %s,\n\nWe would like to inform you that the password for %s has been successfully updated in your account.\n\nThank you for keeping your account secure and up-to-date.\n\nBest regards,\nTeam Password Manager", username, siteName))
}

// Welcome greets a freshly registered account.
func (n *Notifier) Welcome(email, username string) {
	n.dispatch(email, "Welcome to Our Password Manager!",
		fmt.Sprintf("Dear %s,\n\nThank you for choosing our Password Manager!\n\nGet started by logging in to your account and securely store your passwords. You have full control to add, update, and delete passwords as needed. Rest assured, our system checks if your passwords have been compromised for added security.\n\nLogin now to experience hassle-free password management.\n\nBest regards,\nTeam Password Manager", username))
}

func (n *Notifier) dispatch(to, subject, body string) {
	if n.sender == nil || to == "" {
		return
	}
	msg := &Message{To: to, Subject: subject, Body: body}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Warn(ctx, "notification delivery failed", "subject", subject, "error", err.Error())
			return
		}
		n.logger.Debug(ctx, "notification sent", "subject", subject)
	}()
}

// Wait blocks until all in-flight deliveries finish. Used at shutdown and
// in tests; the request path never calls it.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
