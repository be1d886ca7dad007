package session

import (
	"encoding/json"
	"fmt"
)

const (
	MessageConnected = "connected"
	MessagePartial   = "partial"
	MessageFinal     = "final"
	MessageError     = "error"
)

const (
	messageTranscriptionFailed = "transcription failed: %v"
	messageMalformed           = "malformed message: %v"
	messageUnknownType         = "unknown message type: %q"
	messageUnknownAction       = "unknown control action: %q"
	messageInvalidAudio        = "invalid audio: %v"
)

// Message is one outbound event. Its JSON form depends on Type.
type Message struct {
	Type       string
	SessionID  string
	Seq        int64
	Text       string
	Confidence float64
	Error      string
}

func ConnectedMessage(sessionID string) Message {
	return Message{Type: MessageConnected, SessionID: sessionID}
}

func ResultMessage(final bool, seq int64, text string, confidence float64) Message {
	kind := MessagePartial
	if final {
		kind = MessageFinal
	}
	return Message{Type: kind, Seq: seq, Text: text, Confidence: confidence}
}

func ErrorMessage(text string) Message {
	return Message{Type: MessageError, Error: text}
}

func TranscriptionFailedMessage(err error) Message {
	return ErrorMessage(fmt.Sprintf(messageTranscriptionFailed, err))
}

func MalformedMessage(err error) Message {
	return ErrorMessage(fmt.Sprintf(messageMalformed, err))
}

func UnknownTypeMessage(kind string) Message {
	return ErrorMessage(fmt.Sprintf(messageUnknownType, kind))
}

func UnknownActionMessage(action string) Message {
	return ErrorMessage(fmt.Sprintf(messageUnknownAction, action))
}

func InvalidAudioMessage(err error) Message {
	return ErrorMessage(fmt.Sprintf(messageInvalidAudio, err))
}

func (m Message) transcriptText() string {
	if m.Type == MessageError {
		return m.Error
	}
	return m.Text
}

type connectedPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type resultPayload struct {
	Type       string  `json:"type"`
	Seq        int64   `json:"seq"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case MessageConnected:
		return json.Marshal(connectedPayload{Type: m.Type, SessionID: m.SessionID})
	case MessagePartial, MessageFinal:
		return json.Marshal(resultPayload{Type: m.Type, Seq: m.Seq, Text: m.Text, Confidence: m.Confidence})
	case MessageError:
		return json.Marshal(errorPayload{Type: m.Type, Message: m.Error})
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}
