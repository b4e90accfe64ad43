package kafka

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// SASLConfig holds SCRAM credentials.
type SASLConfig struct {
	Username string
	Password string
}

func tlsConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
	}
}

func newTransport(cfg *SASLConfig) (*kafka.Transport, error) {
	if cfg == nil {
		return &kafka.Transport{}, nil
	}

	mechanism, err := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("scram mechanism: %w", err)
	}

	return &kafka.Transport{
		TLS:  tlsConfig(),
		SASL: mechanism,
	}, nil
}

func newDialer(cfg *SASLConfig) (*kafka.Dialer, error) {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if cfg == nil {
		return dialer, nil
	}

	mechanism, err := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("scram mechanism: %w", err)
	}

	dialer.TLS = tlsConfig()
	dialer.SASLMechanism = mechanism

	return dialer, nil
}
