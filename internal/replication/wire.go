package replication

import (
	"encoding/json"
	"fmt"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
)

// SenderGroup tags every message published by a backend replica. It is
// fixed: a replica with a different group would re-apply its siblings'
// echoes.
const SenderGroup = "backend"

// User property names of the sender tags.
const (
	PropSenderID    = "sender_id"
	PropSenderGroup = "sender_group"
)

// storageIDKey is the document-store identifier never sent to peers.
const storageIDKey = "_id"

// encodePayload serializes payload as a JSON object without the storage
// identifier. A nil payload becomes {}.
func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if fields == nil {
		return []byte("{}"), nil
	}
	delete(fields, storageIDKey)
	return json.Marshal(fields)
}

// senderProperties are the tags attached to every outbound message.
func senderProperties(senderID string) mqtt.UserProperties {
	return mqtt.UserProperties{
		{Key: PropSenderID, Value: senderID},
		{Key: PropSenderGroup, Value: SenderGroup},
	}
}

// senderTags reads both tags from an inbound message. Either missing makes
// the message malformed.
func senderTags(props mqtt.UserProperties) (id, group string, err error) {
	id, group = props.Get(PropSenderID), props.Get(PropSenderGroup)
	if id == "" || group == "" {
		return "", "", fmt.Errorf("%w: missing %s/%s user properties", ErrMalformedMessage, PropSenderID, PropSenderGroup)
	}
	return id, group, nil
}
