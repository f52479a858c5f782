// Package protocol decodes the JSON envelopes exchanged with relay clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a decoded envelope.
type Kind int

const (
	KindUnknown Kind = iota
	KindSubscribe
	KindUnsubscribe
	KindPublish
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindSubscribe:
		return TypeSubscribe
	case KindUnsubscribe:
		return TypeUnsubscribe
	case KindPublish:
		return TypePublish
	case KindPing:
		return TypePing
	default:
		return "unknown"
	}
}

// Wire values of the envelope "type" field.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePublish     = "publish"
	TypePing        = "ping"
	TypePong        = "pong"
)

var (
	// ErrMalformedEnvelope is returned for frames that are not valid JSON.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMissingField is returned when an envelope lacks a required field.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidField is returned when a required field has the wrong JSON type.
	ErrInvalidField = errors.New("invalid field")
)

// FieldError describes a problem with one envelope field.
type FieldError struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s envelope: %s: %v", e.Kind, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Envelope is a decoded client frame. Only the fields relevant to Kind are set.
type Envelope struct {
	Kind Kind

	// Topics lists the string entries of a subscribe/unsubscribe "topics"
	// array. Non-string entries are dropped.
	Topics []string

	// Topic is the target of a publish.
	Topic string

	// Raw is the frame exactly as received. A publish is relayed as Raw.
	Raw []byte
}

// Pong is the reply to a ping envelope.
type Pong struct {
	Type string `json:"type"`
}

// NewPong returns the reply to a ping envelope.
func NewPong() Pong {
	return Pong{Type: TypePong}
}

// Parse decodes one frame.
//
// Frames that are not valid JSON yield ErrMalformedEnvelope. Valid JSON that
// is not an object, has no string "type" or an unrecognised one decodes to
// KindUnknown without error. A recognised envelope whose required field is
// absent or of the wrong type is returned with its Kind set together with a
// *FieldError, so callers can treat it as a no-op.
func Parse(data []byte) (Envelope, error) {
	if !json.Valid(data) {
		return Envelope{}, ErrMalformedEnvelope
	}

	env := Envelope{Raw: data}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return env, nil
	}

	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil {
		return env, nil
	}

	switch typ {
	case TypeSubscribe:
		env.Kind = KindSubscribe
		topics, err := parseTopics(env.Kind, fields)
		env.Topics = topics
		return env, err
	case TypeUnsubscribe:
		env.Kind = KindUnsubscribe
		topics, err := parseTopics(env.Kind, fields)
		env.Topics = topics
		return env, err
	case TypePublish:
		env.Kind = KindPublish
		topic, err := parseTopic(fields)
		env.Topic = topic
		return env, err
	case TypePing:
		env.Kind = KindPing
		return env, nil
	default:
		return env, nil
	}
}

func parseTopics(kind Kind, fields map[string]json.RawMessage) ([]string, error) {
	raw, ok := fields["topics"]
	if !ok || isNull(raw) {
		return nil, &FieldError{Kind: kind, Field: "topics", Err: ErrMissingField}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &FieldError{Kind: kind, Field: "topics", Err: ErrInvalidField}
	}

	topics := make([]string, 0, len(entries))
	for _, entry := range entries {
		var topic string
		if err := json.Unmarshal(entry, &topic); err != nil || isNull(entry) {
			continue
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func parseTopic(fields map[string]json.RawMessage) (string, error) {
	raw, ok := fields["topic"]
	if !ok || isNull(raw) {
		return "", &FieldError{Kind: KindPublish, Field: "topic", Err: ErrMissingField}
	}

	var topic string
	if err := json.Unmarshal(raw, &topic); err != nil {
		return "", &FieldError{Kind: KindPublish, Field: "topic", Err: ErrInvalidField}
	}
	if topic == "" {
		return "", &FieldError{Kind: KindPublish, Field: "topic", Err: ErrMissingField}
	}
	return topic, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
