package notify

import (
	"context"
	"errors"
	"fmt"
)

const TranscriptSchemaVersion = 1

type TranscriptSegment struct {
	Index      int     `json:"index"`
	Seq        int64   `json:"seq"`
	Kind       string  `json:"kind"`
	StartAt    string  `json:"startAt"`
	EndAt      string  `json:"endAt"`
	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript"`
}

// TranscriptPayload is the assembled transcript of one ended session.
type TranscriptPayload struct {
	SchemaVersion   int                 `json:"schemaVersion"`
	SessionID       string              `json:"sessionId"`
	Transport       string              `json:"transport"`
	StartAt         string              `json:"startAt"`
	EndAt           string              `json:"endAt"`
	DurationSeconds int64               `json:"durationSeconds"`
	Reason          string              `json:"reason"`
	SegmentCount    int                 `json:"segmentCount"`
	Segments        []TranscriptSegment `json:"segments"`
	Transcript      string              `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptPayload) error
}

type multiSender []Sender

// NewMulti fans a transcript out to every sender and joins their errors.
func NewMulti(senders ...Sender) Sender {
	out := make(multiSender, 0, len(senders))
	for _, s := range senders {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSender) SendTranscript(ctx context.Context, payload TranscriptPayload) error {
	var errs []error
	for i, s := range m {
		if err := s.SendTranscript(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
