package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/foxseedlab/streamscribe/internal/transcriber"
)

const (
	whisperTranscriptionsPath = "/audio/transcriptions"
	whisperTranslationsPath   = "/audio/translations"
	whisperResponseFormat     = "verbose_json"
	whisperErrorBodyLimit     = 512
)

type WhisperConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	DefaultLanguage string
}

// WhisperTranscriber talks to an OpenAI-compatible Whisper HTTP API.
type WhisperTranscriber struct {
	baseURL         string
	apiKey          string
	model           string
	defaultLanguage string
	client          *http.Client
}

func NewWhisperTranscriber(cfg WhisperConfig, client *http.Client) transcriber.Transcriber {
	if client == nil {
		client = &http.Client{}
	}
	return &WhisperTranscriber{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		defaultLanguage: cfg.DefaultLanguage,
		client:          client,
	}
}

type whisperSegment struct {
	AvgLogprob float64 `json:"avg_logprob"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, req transcriber.Request) (transcriber.Result, error) {
	language := req.Language
	if language == "" {
		language = t.defaultLanguage
	}
	path := whisperTranscriptionsPath
	if req.Translate {
		path = whisperTranslationsPath
	}

	body, contentType, err := t.buildForm(req, language)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("build whisper form: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, body)
	if err != nil {
		return transcriber.Result{}, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	slog.Debug("sending window to whisper", "path", path, "audio_bytes", len(req.Audio), "language", language)
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("whisper request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, whisperErrorBodyLimit))
		return transcriber.Result{}, fmt.Errorf("whisper returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return transcriber.Result{}, fmt.Errorf("decode whisper response: %w", err)
	}
	return transcriber.Result{
		Text:       strings.TrimSpace(out.Text),
		Confidence: segmentConfidence(out.Segments),
	}, nil
}

func (t *WhisperTranscriber) buildForm(req transcriber.Request, language string) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"model", t.model},
		{"response_format", whisperResponseFormat},
		{"prompt", req.Prompt},
	}
	// The translations endpoint always targets English and rejects a source language.
	if !req.Translate {
		fields = append(fields, [2]string{"language", language})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// segmentConfidence averages exp(avg_logprob) across segments.
func segmentConfidence(segments []whisperSegment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segments {
		sum += math.Exp(s.AvgLogprob)
	}
	return sum / float64(len(segments))
}
