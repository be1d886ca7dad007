package discord

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/foxseedlab/streamscribe/internal/notify"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSender(t *testing.T, rt roundTripFunc) *ChannelSender {
	t.Helper()
	c, err := NewChannelSender("test-token", "channel-1")
	if err != nil {
		t.Fatalf("failed to create sender: %v", err)
	}
	c.session.Client = &http.Client{Transport: rt}
	return c
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestSendTranscript_PostsAttachment(t *testing.T) {
	var gotFilename, gotFile, gotPayload string
	c := newTestSender(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/channels/channel-1/messages") {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("invalid content type: %v", err)
			return jsonResponse(http.StatusBadRequest, `{}`), nil
		}
		reader := multipart.NewReader(req.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			body, _ := io.ReadAll(part)
			if part.FormName() == "payload_json" {
				gotPayload = string(body)
				continue
			}
			gotFilename = part.FileName()
			gotFile = string(body)
		}
		return jsonResponse(http.StatusOK, `{"id":"m1","channel_id":"channel-1"}`), nil
	})

	payload := notify.TranscriptPayload{
		SessionID:       "abc",
		Transport:       "socket",
		StartAt:         "2026-02-28T12:00:00Z",
		EndAt:           "2026-02-28T12:01:30Z",
		DurationSeconds: 90,
		Reason:          "closed",
		Segments:        []notify.TranscriptSegment{{StartAt: "2026-02-28T12:00:15Z", Transcript: "hello"}},
	}
	if err := c.SendTranscript(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilename != "transcript-20260228-120000.txt" {
		t.Fatalf("unexpected filename: %q", gotFilename)
	}
	if !strings.Contains(gotFile, "00:00:15 hello") {
		t.Fatalf("unexpected file body: %q", gotFile)
	}
	if !strings.Contains(gotPayload, "1m30s") || !strings.Contains(gotPayload, "abc") {
		t.Fatalf("unexpected message payload: %q", gotPayload)
	}
}

func TestSendTranscript_ReturnsRESTError(t *testing.T) {
	c := newTestSender(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"message":"Missing Permissions","code":50013}`), nil
	})
	if err := c.SendTranscript(context.Background(), notify.TranscriptPayload{SessionID: "abc"}); err == nil {
		t.Fatal("expected error for forbidden response")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{0: "0s", 59: "59s", 60: "1m00s", 3725: "62m05s"}
	for in, want := range cases {
		if got := formatDuration(in); got != want {
			t.Fatalf("formatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}
