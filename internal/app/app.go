// Package app assembles the component host: configuration, stores, the
// dispatcher and the registered components. The bot and the CLI share it.
package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/components/misc"
	"github.com/keshon/cordhost/internal/components/tickets"
	"github.com/keshon/cordhost/internal/config"
	"github.com/keshon/cordhost/internal/history"
	"github.com/keshon/cordhost/internal/metrics"
	"github.com/keshon/cordhost/pkg/cmd"
)

// Deps are the collaborators that depend on how the host is run.
type Deps struct {
	Platform tickets.Platform
	Roles    cmd.RoleProvider
	// Registerer receives the metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Host is an assembled, ready to route component host.
type Host struct {
	Dispatcher *component.Dispatcher
	Metrics    *metrics.Metrics
	History    *history.History
	Auth       cmd.Authorizer

	tickets *tickets.Tickets
}

// New builds the host. Components are registered in a fixed order: misc,
// then tickets.
func New(cfg *config.Config, deps Deps) (*Host, error) {
	m := metrics.New(deps.Registerer)

	hist, err := history.Open(cfg.HistoryPath, m.ObserveFlush)
	if err != nil {
		return nil, err
	}

	h := &Host{
		Dispatcher: component.NewDispatcher(cfg.Prefix(), component.WithRouteHook(m.ObserveRoute)),
		Metrics:    m,
		History:    hist,
		Auth:       cmd.NewGate(deps.Roles, cfg.Owners...),
	}
	if err := h.register(cfg, deps); err != nil {
		return nil, errors.Join(err, h.Close())
	}
	return h, nil
}

func (h *Host) register(cfg *config.Config, deps Deps) error {
	mws := []component.Middleware{
		component.WithLogging(),
		h.Metrics.Middleware(),
		h.History.Middleware(),
	}

	var miscSettings misc.Settings
	if _, err := cfg.Component(misc.Name, &miscSettings); err != nil {
		return err
	}
	m, err := misc.New(misc.Options{
		Settings:          miscSettings,
		History:           h.History,
		Catalog:           h.Dispatcher.Components,
		Prefix:            cfg.Prefix(),
		InvitePermissions: cfg.InvitePermissions,
		Auth:              h.Auth,
		Middlewares:       mws,
	})
	if err != nil {
		return err
	}
	if err := h.Dispatcher.Register(m); err != nil {
		return err
	}

	var ticketSettings tickets.Settings
	if _, err := cfg.Component(tickets.Name, &ticketSettings); err != nil {
		return err
	}
	h.tickets, err = tickets.New(tickets.Options{
		DataDir:     cfg.DataDir,
		Settings:    ticketSettings,
		Platform:    deps.Platform,
		Auth:        h.Auth,
		Middlewares: mws,
		OnFlush:     h.Metrics.ObserveFlush,
	})
	if err != nil {
		return err
	}
	return h.Dispatcher.Register(h.tickets)
}

// Close flushes and closes every store.
func (h *Host) Close() error {
	var errs []error
	if h.tickets != nil {
		errs = append(errs, h.tickets.Close())
	}
	errs = append(errs, h.History.Close())
	err := errors.Join(errs...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to close stores")
	}
	return err
}
