package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/pipewatch/internal/api"
	"github.com/zjrosen/pipewatch/internal/command"
	"github.com/zjrosen/pipewatch/internal/config"
	"github.com/zjrosen/pipewatch/internal/flags"
	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/monitor"
	"github.com/zjrosen/pipewatch/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

// session is one configured client: tracing, the HTTP client, and a monitor
// that has not been started yet.
type session struct {
	provider *tracing.Provider
	client   *api.Client
	monitor  *monitor.Monitor
}

func newSession(c config.Config, opts ...monitor.Option) (*session, error) {
	provider, err := tracing.NewProvider(c.Tracing)
	if err != nil {
		return nil, fmt.Errorf("creating tracing provider: %w", err)
	}
	client, err := api.New(c.ServerURL, api.WithTracer(provider.Tracer()))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	base := []monitor.Option{
		monitor.WithSettings(settings(c)),
		monitor.WithTracer(provider.Tracer()),
		monitor.WithFlags(flags.New(c.Flags)),
	}
	m := monitor.New(client, append(base, opts...)...)
	return &session{provider: provider, client: client, monitor: m}, nil
}

// Close tears down the monitor and flushes spans.
func (s *session) Close() {
	s.monitor.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.provider.Shutdown(ctx); err != nil {
		log.Warn(log.CatConfig, "tracing shutdown failed", "error", err)
	}
}

func settings(c config.Config) monitor.Settings {
	return monitor.Settings{
		ReconnectDelay: c.Stream.ReconnectDelay,
		PollInterval:   c.Poll.Interval,
		LeadsLimit:     c.Poll.LeadsLimit,
		LogsLimit:      c.Poll.LogsLimit,
		MessageTTL:     c.Cache.MessageTTL,
	}
}

func startOptions(s config.StartConfig) command.StartOptions {
	return command.StartOptions{DryRun: s.DryRun, AIMode: s.AIMode, Count: command.ClampCount(s.Count)}
}
