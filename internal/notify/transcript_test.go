package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildPayload_SkipsErrorsAndEmptyText(t *testing.T) {
	startedAt := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	meta := Meta{SessionID: "abc", Transport: "stream", StartedAt: startedAt, EndedAt: startedAt.Add(2 * time.Minute), Reason: "disconnect"}
	entries := []Entry{
		{Seq: 0, Kind: "partial", Text: "hello", Confidence: 0.9, EmittedAt: startedAt.Add(15 * time.Second)},
		{Seq: 1, Kind: "error", Text: "transcription failed", EmittedAt: startedAt.Add(20 * time.Second)},
		{Seq: 2, Kind: "partial", Text: "  ", EmittedAt: startedAt.Add(30 * time.Second)},
		{Seq: 3, Kind: "final", Text: "world", Confidence: 0.7, EmittedAt: startedAt.Add(75 * time.Second)},
	}

	p, ok := BuildPayload(meta, entries)
	if !ok {
		t.Fatal("expected payload to be built")
	}
	if p.SegmentCount != 2 || p.Transcript != "hello\nworld" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.DurationSeconds != 120 {
		t.Fatalf("expected 120 seconds, got %d", p.DurationSeconds)
	}
	if p.Segments[0].EndAt != p.Segments[1].StartAt {
		t.Fatalf("expected first segment to end where the next starts: %+v", p.Segments)
	}
	if p.Segments[1].EndAt != p.EndAt {
		t.Fatalf("expected last segment to end at session end: %+v", p.Segments[1])
	}
	if p.Segments[1].Seq != 3 || p.Segments[1].Kind != "final" {
		t.Fatalf("unexpected last segment: %+v", p.Segments[1])
	}
}

func TestBuildPayload_NothingToSend(t *testing.T) {
	now := time.Now()
	_, ok := BuildPayload(Meta{StartedAt: now, EndedAt: now}, []Entry{{Kind: "error", Text: "boom"}, {Kind: "partial"}})
	if ok {
		t.Fatal("expected no payload for a session without text")
	}
}

func TestRenderText(t *testing.T) {
	startedAt := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	p, _ := BuildPayload(Meta{SessionID: "abc", Transport: "socket", StartedAt: startedAt, EndedAt: startedAt.Add(time.Hour + time.Minute), Reason: "closed"}, []Entry{
		{Kind: "partial", Text: "first", EmittedAt: startedAt.Add(15 * time.Second)},
		{Kind: "final", Text: "last", EmittedAt: startedAt.Add(time.Hour + 75*time.Second)},
	})
	body := string(RenderText(p))
	for _, want := range []string{"Session: abc (socket)", "Period: 2026-02-28 12:00:00 ~ 2026-02-28 13:01:00 (UTC)", "00:00:15 first", "01:01:15 last"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
	if got := TranscriptFilename(p); got != "transcript-20260228-120000.txt" {
		t.Fatalf("unexpected filename: %s", got)
	}
}

type recordingSender struct {
	calls int
	err   error
}

func (r *recordingSender) SendTranscript(context.Context, TranscriptPayload) error {
	r.calls++
	return r.err
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingSender{}
	failing := &recordingSender{err: errors.New("down")}
	m := NewMulti(failing, nil, ok)

	err := m.SendTranscript(context.Background(), TranscriptPayload{})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.calls != 1 || failing.calls != 1 {
		t.Fatalf("expected both senders called once, got ok=%d failing=%d", ok.calls, failing.calls)
	}
}
