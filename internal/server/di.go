package server

import (
	"github.com/foxseedlab/streamscribe/internal/config"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/repository"
	"github.com/foxseedlab/streamscribe/internal/session"
	"github.com/foxseedlab/streamscribe/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*transport.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*session.Manager](i)
		return transport.NewHandler(manager, transport.NewOriginPolicy(cfg.AllowedOrigins)), nil
	})
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return New(Config{
			Addr:           cfg.HTTPAddr,
			MetricsEnabled: cfg.MetricsEnabled,
		},
			do.MustInvoke[*transport.Handler](i),
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[*prometheus.Registry](i),
			do.MustInvoke[*metrics.Metrics](i),
		), nil
	})
}
