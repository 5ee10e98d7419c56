package amqp

import (
	"encoding/json"
	"time"
)

// ActivityMessage is the wire form of an audited book mutation published to
// the activity exchange. Consumers get the full record; there is no
// fetch-back step.
type ActivityMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	ReferenceID string    `json:"referenceId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewActivityMessage(id, activityType, description, referenceID string) *ActivityMessage {
	return &ActivityMessage{
		ID:          id,
		Type:        activityType,
		Description: description,
		ReferenceID: referenceID,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON creates a message from JSON bytes
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
