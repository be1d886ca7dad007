package session

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMessage_MarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want string
	}{
		{"connected", ConnectedMessage("abc"), `{"type":"connected","sessionId":"abc"}`},
		{"partial", ResultMessage(false, 3, "hi", 0.5), `{"type":"partial","seq":3,"text":"hi","confidence":0.5}`},
		{"final", ResultMessage(true, 0, "", 0), `{"type":"final","seq":0,"text":"","confidence":0}`},
		{"error", TranscriptionFailedMessage(errors.New("boom")), `{"type":"error","message":"transcription failed: boom"}`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.msg)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if string(b) != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, b, tc.want)
		}
	}
}

func TestMessage_MarshalUnknownType(t *testing.T) {
	if _, err := json.Marshal(Message{Type: "bogus"}); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}
