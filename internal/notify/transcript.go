package notify

import (
	"fmt"
	"strings"
	"time"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// Entry is one emitted result as seen by the transcript builder.
type Entry struct {
	Seq        int64
	Kind       string
	Text       string
	Confidence float64
	EmittedAt  time.Time
}

type Meta struct {
	SessionID string
	Transport string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    string
}

// BuildPayload keeps partial and final entries with non-empty text. It
// reports false when nothing is left to send.
func BuildPayload(meta Meta, entries []Entry) (TranscriptPayload, bool) {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == "error" || strings.TrimSpace(e.Text) == "" {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return TranscriptPayload{}, false
	}

	segments := make([]TranscriptSegment, 0, len(kept))
	lines := make([]string, 0, len(kept))
	for i, e := range kept {
		end := meta.EndedAt
		if i+1 < len(kept) {
			end = kept[i+1].EmittedAt
		}
		if end.Before(e.EmittedAt) {
			end = e.EmittedAt
		}
		segments = append(segments, TranscriptSegment{
			Index:      i,
			Seq:        e.Seq,
			Kind:       e.Kind,
			StartAt:    e.EmittedAt.UTC().Format(time.RFC3339),
			EndAt:      end.UTC().Format(time.RFC3339),
			Confidence: e.Confidence,
			Transcript: strings.TrimSpace(e.Text),
		})
		lines = append(lines, strings.TrimSpace(e.Text))
	}

	duration := int64(meta.EndedAt.Sub(meta.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	return TranscriptPayload{
		SchemaVersion:   TranscriptSchemaVersion,
		SessionID:       meta.SessionID,
		Transport:       meta.Transport,
		StartAt:         meta.StartedAt.UTC().Format(time.RFC3339),
		EndAt:           meta.EndedAt.UTC().Format(time.RFC3339),
		DurationSeconds: duration,
		Reason:          meta.Reason,
		SegmentCount:    len(segments),
		Segments:        segments,
		Transcript:      strings.Join(lines, "\n"),
	}, true
}

// RenderText formats a payload as a plain-text file with elapsed offsets.
func RenderText(p TranscriptPayload) []byte {
	startedAt, _ := time.Parse(time.RFC3339, p.StartAt)
	endedAt, _ := time.Parse(time.RFC3339, p.EndAt)
	lines := []string{
		fmt.Sprintf("Session: %s (%s)", p.SessionID, p.Transport),
		fmt.Sprintf("Period: %s ~ %s (UTC)", startedAt.Format(transcriptTimeLayout), endedAt.Format(transcriptTimeLayout)),
		fmt.Sprintf("Ended: %s", p.Reason),
		"",
	}
	for _, seg := range p.Segments {
		at, _ := time.Parse(time.RFC3339, seg.StartAt)
		elapsed := at.Sub(startedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		lines = append(lines, fmt.Sprintf("%s %s", formatElapsedHMS(elapsed), seg.Transcript))
	}
	return []byte(strings.Join(lines, "\n"))
}

func TranscriptFilename(p TranscriptPayload) string {
	startedAt, err := time.Parse(time.RFC3339, p.StartAt)
	if err != nil {
		return "transcript.txt"
	}
	return fmt.Sprintf("transcript-%s.txt", startedAt.Format("20060102-150405"))
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
