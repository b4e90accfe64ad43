// Package notification delivers the e-mails queued for the notifier.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"

	"github.com/purposeinplay/notifier/worker"
)

// QueueName is the default queue the notifications are consumed from.
const QueueName = "notifications"

var (
	// ErrMissingRecipient is returned when the input has no user e-mail.
	ErrMissingRecipient = errors.New("missing recipient")

	// ErrInvalidRecipient is returned when the user e-mail cannot be parsed.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// Input is a queued notification.
type Input struct {
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	UserEmail string `json:"userEmail"`
}

// Validate reports whether in can be delivered.
func (in Input) Validate() error {
	if in.UserEmail == "" {
		return ErrMissingRecipient
	}

	if _, err := mail.ParseAddress(in.UserEmail); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRecipient, err)
	}

	return nil
}

// Args converts in to job arguments.
func (in Input) Args() worker.Args {
	return worker.Args{
		"subject":   in.Subject,
		"message":   in.Message,
		"userEmail": in.UserEmail,
	}
}

// FromArgs decodes job arguments into an Input.
func FromArgs(args worker.Args) (Input, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return Input{}, fmt.Errorf("marshal args: %w", err)
	}

	var in Input

	if err := json.Unmarshal(b, &in); err != nil {
		return Input{}, fmt.Errorf("unmarshal input: %w", err)
	}

	return in, nil
}
