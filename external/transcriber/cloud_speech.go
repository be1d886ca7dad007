package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

// recognizer is the subset of the speech client used per window.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	defaultLanguage string
	location        string
	model           string

	mu     sync.Mutex
	client recognizer
	dial   func(ctx context.Context) (recognizer, error)
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) *CloudSpeechTranscriber {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	t := &CloudSpeechTranscriber{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		defaultLanguage: cfg.Language,
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
	}
	t.dial = t.dialSpeech
	return t
}

func (t *CloudSpeechTranscriber) dialSpeech(ctx context.Context) (recognizer, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}
	// The client outlives the first request, so it must not inherit its deadline.
	client, err := speech.NewClient(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("cloud speech client initialized", "location", t.location, "model", t.model)
	return &speechClient{client: client}, nil
}

type speechClient struct {
	client *speech.Client
}

func (c *speechClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return c.client.Recognize(ctx, req)
}

func (c *speechClient) Close() error {
	return c.client.Close()
}

func (t *CloudSpeechTranscriber) connect(ctx context.Context) (recognizer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	c, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.client = c
	return c, nil
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, req transcriber.Request) (transcriber.Result, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return transcriber.Result{}, err
	}
	if req.Translate {
		slog.Debug("cloud speech does not translate; returning source language transcript")
	}

	rr := t.buildRequest(req)
	resp, err := client.Recognize(ctx, rr)
	if err != nil && isRetryableRecognizeError(err) {
		slog.Warn("cloud speech recognize failed with retryable error; retrying once", "error", err)
		resp, err = client.Recognize(ctx, rr)
	}
	if err != nil {
		return transcriber.Result{}, fmt.Errorf("cloud speech recognize: %w", err)
	}
	return collectResults(resp), nil
}

func (t *CloudSpeechTranscriber) buildRequest(req transcriber.Request) *speechpb.RecognizeRequest {
	language := req.Language
	if language == "" {
		language = t.defaultLanguage
	}
	cfg := &speechpb.RecognitionConfig{
		Model:         t.model,
		LanguageCodes: []string{language},
		DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
			AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
		},
		Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		cfg.Adaptation = &speechpb.SpeechAdaptation{
			PhraseSets: []*speechpb.SpeechAdaptation_AdaptationPhraseSet{{
				Value: &speechpb.SpeechAdaptation_AdaptationPhraseSet_InlinePhraseSet{
					InlinePhraseSet: &speechpb.PhraseSet{
						Phrases: []*speechpb.PhraseSet_Phrase{{Value: prompt}},
					},
				},
			}},
		}
	}
	return &speechpb.RecognizeRequest{
		Recognizer:  fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, t.location),
		Config:      cfg,
		AudioSource: &speechpb.RecognizeRequest_Content{Content: req.Audio},
	}
}

// collectResults joins the top alternative of each result and averages their confidence.
func collectResults(resp *speechpb.RecognizeResponse) transcriber.Result {
	var (
		parts []string
		sum   float64
		n     int
	)
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
		sum += float64(alts[0].GetConfidence())
		n++
	}
	res := transcriber.Result{Text: strings.Join(parts, " ")}
	if n > 0 {
		res.Confidence = sum / float64(n)
	}
	return res
}

func isRetryableRecognizeError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.Aborted:
		return true
	default:
		return false
	}
}

func (t *CloudSpeechTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
