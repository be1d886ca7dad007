package transcriber

import (
	"fmt"
	"net/http"

	"github.com/foxseedlab/streamscribe/internal/config"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.TranscriptionProvider {
		case config.ProviderWhisper:
			return NewWhisperTranscriber(WhisperConfig{
				BaseURL:         c.WhisperURL,
				APIKey:          c.WhisperAPIKey,
				Model:           c.WhisperModel,
				DefaultLanguage: c.DefaultLanguage,
			}, &http.Client{}), nil
		case config.ProviderCloudSpeech:
			return NewCloudSpeechTranscriber(CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Language:        c.DefaultLanguage,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           c.GoogleCloudSpeechModel,
			}), nil
		default:
			return nil, fmt.Errorf("unknown transcription provider %q", c.TranscriptionProvider)
		}
	})
}
