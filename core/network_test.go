package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUnicastBackoffSchedule(t *testing.T) {
	p := UnicastRetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
	}
	for attempt, expect := range want {
		if got := p.backoff(attempt); got != expect {
			t.Fatalf("attempt %d: got %v want %v", attempt, got, expect)
		}
	}
}

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	msg := Message{Kind: MsgBlockPartialSig, Payload: []byte{0xde, 0xad, 0xbe, 0xef}}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != msg.Kind || len(got.Payload) != len(msg.Payload) {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}
