package events

import (
	"github.com/foxseedlab/streamscribe/internal/config"
	"github.com/foxseedlab/streamscribe/internal/events"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (events.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.NATSURL == "" {
			return events.NewNoop(), nil
		}
		p, err := ConnectNATS(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
