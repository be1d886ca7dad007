package transcriber

import "context"

// Request is one window of audio wrapped in a WAV container plus the
// caller's instructions.
type Request struct {
	Audio      []byte
	SampleRate int
	Language   string
	Translate  bool
	Prompt     string
}

type Result struct {
	Text       string
	Confidence float64
}

// Transcriber is the external speech recognition provider. Implementations
// may be slow and must be safe for concurrent use across sessions.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}
