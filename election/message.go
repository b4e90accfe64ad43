package election

import "fmt"

// MessageType discriminates election messages.
type MessageType string

// The election message types.
const (
	MessageHeartbeat   MessageType = "HEARTBEAT"
	MessageElection    MessageType = "ELECTION"
	MessageOk          MessageType = "OK"
	MessageCoordinator MessageType = "COORDINATOR"
)

// Message is the envelope broadcast between replicas.
type Message struct {
	Type     MessageType `json:"type"`
	From     string      `json:"fromId"`
	LeaderID string      `json:"leaderId,omitempty"`
}

// Heartbeat announces that from is alive.
func Heartbeat(from string) Message {
	return Message{Type: MessageHeartbeat, From: from}
}

// ElectionRequest asks every replica with a higher id to take over.
func ElectionRequest(from string) Message {
	return Message{Type: MessageElection, From: from}
}

// Ok tells the requester that a higher replica is alive.
func Ok(from string) Message {
	return Message{Type: MessageOk, From: from}
}

// Coordinator announces leaderID as the leader.
func Coordinator(from, leaderID string) Message {
	return Message{Type: MessageCoordinator, From: from, LeaderID: leaderID}
}

// Validate reports whether m can be dispatched.
func (m Message) Validate() error {
	switch m.Type {
	case MessageHeartbeat, MessageElection, MessageOk:
	case MessageCoordinator:
		if m.LeaderID == "" {
			return ErrMissingLeader
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}

	if m.From == "" {
		return ErrMissingSender
	}

	return nil
}
