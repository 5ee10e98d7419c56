package amqp

import (
	"testing"
	"time"
)

func TestActivityMessageRoundTrip(t *testing.T) {
	msg := NewActivityMessage("a1", "loan_add", "Loan approved: Maria - $1000", "l1")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := ActivityMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != "a1" || decoded.Type != "loan_add" || decoded.ReferenceID != "l1" {
		t.Fatalf("unexpected decoded message: %+v", decoded)
	}
	if time.Since(decoded.Timestamp) > time.Minute {
		t.Fatal("timestamp should be recent")
	}
}

func TestActivityMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := ActivityMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
