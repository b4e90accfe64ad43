package kafka

import (
	"testing"

	"github.com/matryer/is"
	"github.com/purposeinplay/notifier/pubsub"
	"github.com/segmentio/kafka-go"
)

type payload struct {
	From     string `json:"from"`
	LeaderID string `json:"leaderId,omitempty"`
}

func TestMessageCodec(t *testing.T) {
	// nolint: gocritic, revive
	is := is.New(t)

	in := pubsub.Event[payload]{
		Type:    "COORDINATOR",
		Payload: payload{From: "b", LeaderID: "b"},
	}

	msg, err := encodeMessage("zerify.election", in)
	is.NoErr(err)

	is.Equal(msg.Topic, "zerify.election")
	is.Equal(string(msg.Value), `{"from":"b","leaderId":"b"}`)

	out, err := decodeMessage[payload](msg)
	is.NoErr(err)
	is.Equal(out, in)
}

func TestDecodeMessage_Invalid(t *testing.T) {
	// nolint: gocritic, revive
	is := is.New(t)

	_, err := decodeMessage[payload](kafka.Message{Value: []byte("nope")})
	is.True(err != nil)
}

func TestNew(t *testing.T) {
	// nolint: gocritic, revive
	is := is.New(t)

	_, err := New[payload](Options{})
	is.Equal(err, ErrNoBrokers)

	b, err := New[payload](Options{
		Brokers: []string{"localhost:9092"},
		SASL:    &SASLConfig{Username: "u", Password: "p"},
	})
	is.NoErr(err)
	is.Equal(b.opts.GroupPrefix, "notifier")

	err = b.Publish(pubsub.Event[payload]{})
	is.Equal(err, pubsub.ErrExactlyOneChannelAllowed)

	is.NoErr(b.Close())
}
