package session

import (
	"github.com/foxseedlab/streamscribe/internal/config"
	"github.com/foxseedlab/streamscribe/internal/events"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/notify"
	"github.com/foxseedlab/streamscribe/internal/repository"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Recorder, error) {
		repo := do.MustInvoke[repository.Repository](i)
		publisher := do.MustInvoke[events.Publisher](i)
		sender := do.MustInvoke[notify.Sender](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewRecorder(repo, publisher, sender, m), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		recorder := do.MustInvoke[*Recorder](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(ManagerConfig{
			Dispatcher: DispatcherConfig{
				WindowSamples:   cfg.WindowSamples(),
				SampleRate:      cfg.SampleRate,
				ProviderTimeout: cfg.ProviderTimeout,
			},
			IdleTimeout:     cfg.SessionIdleTimeout,
			ReaperInterval:  cfg.ReaperInterval,
			DisconnectGrace: cfg.DisconnectGrace,
		}, stt, recorder, m), nil
	})
}
