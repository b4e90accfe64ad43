package notification

import (
	"crypto/tls"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/purposeinplay/notifier/metrics"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender delivers one notification.
type Sender interface {
	Send(in Input) error
}

// Dialer sends prepared messages. *gomail.Dialer implements it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailConfig holds the SMTP settings.
type MailConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`

	// SenderAddress is the From address of every notification.
	SenderAddress string `yaml:"sender_address"`

	// RetryCount is how many times a failed send is retried.
	RetryCount uint64 `yaml:"retry_count"`
}

// MailSender sends plain text notifications over SMTP.
type MailSender struct {
	dialer  Dialer
	host    string
	from    string
	retries uint64
	backoff func() backoff.BackOff
	logger  *zap.Logger
}

// MailOption configures a MailSender.
type MailOption func(*MailSender)

// WithDialer replaces the SMTP dialer.
func WithDialer(d Dialer) MailOption {
	return func(s *MailSender) {
		s.dialer = d
	}
}

// WithBackOff sets the retry policy between attempts.
func WithBackOff(b func() backoff.BackOff) MailOption {
	return func(s *MailSender) {
		s.backoff = b
	}
}

// NewMailSender creates a sender for cfg.
func NewMailSender(cfg MailConfig, logger *zap.Logger, opts ...MailOption) *MailSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		// nolint: gosec // opt-in for self-signed relays.
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	s := &MailSender{
		dialer:  d,
		host:    cfg.Host,
		from:    cfg.SenderAddress,
		retries: cfg.RetryCount,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:  logger,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Send delivers in to its recipient, retrying failed attempts.
func (s *MailSender) Send(in Input) error {
	if err := in.Validate(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", in.UserEmail)
	msg.SetHeader("Subject", in.Subject)
	msg.SetBody("text/plain", in.Message)

	attempt := 0

	operation := func() error {
		attempt++

		err := s.dialer.DialAndSend(msg)
		if err != nil {
			s.logger.Warn("send attempt failed",
				zap.Int("attempt", attempt),
				zap.String("host", s.host),
				zap.Error(err),
			)
		}

		return err
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(s.backoff(), s.retries)); err != nil {
		metrics.NotificationsFailed.WithLabelValues(s.host).Inc()

		return fmt.Errorf("dial and send: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues(s.host).Inc()

	s.logger.Info("notification sent",
		zap.String("to", in.UserEmail),
		zap.Int("attempts", attempt),
	)

	return nil
}
