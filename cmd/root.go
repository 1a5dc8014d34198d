package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/pipewatch/internal/command"
	"github.com/zjrosen/pipewatch/internal/config"
	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/monitor"
	"github.com/zjrosen/pipewatch/internal/paths"
	"github.com/zjrosen/pipewatch/internal/ui/dashboard"
	"github.com/zjrosen/pipewatch/internal/watcher"
)

func init() {
	// Query the terminal background before any program starts so the OSC 11
	// reply cannot land in the input loop.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const defaultLogPath = "debug.log"

var (
	version    = "dev"
	cfgFile    string
	debugFlag  bool
	cfg        config.Config
	cfgErr     error
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "pipewatch",
	Short: "Watch and control a lead outreach pipeline",
	Long: `pipewatch follows a running outreach pipeline: stage progress, lead
metrics, recent leads and logs. It keeps a live event stream open, falls back
to polling while the stream is down, and lets you start, stop, and reset runs.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .pipewatch/config.yaml, then ~/.config/pipewatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (path from PIPEWATCH_LOG, default debug.log)")
	rootCmd.PersistentFlags().String("server", "",
		"pipeline service URL (overrides server_url)")

	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	path, found := paths.ResolveConfig(cfgFile)
	if !found && cfgFile == "" {
		// First run: write the commented default next to the working directory.
		if err := config.WriteDefaultConfig(path); err == nil {
			found = true
		}
	}
	if found || cfgFile != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			cfgErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	configPath = path
	cfg, cfgErr = config.Decode(v)
}

// initLogging turns on the file logger when --debug or PIPEWATCH_DEBUG is set.
// PIPEWATCH_LOG picks the file and PIPEWATCH_LOG_LEVEL the minimum level.
func initLogging(prefix string) (func(), error) {
	if !debugFlag && os.Getenv(config.EnvPrefix+"_DEBUG") == "" {
		return func() {}, nil
	}
	logPath := os.Getenv(config.EnvPrefix + "_LOG")
	if logPath == "" {
		logPath = defaultLogPath
	}
	cleanup, err := log.InitWithTeaLog(logPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	if level := os.Getenv(config.EnvPrefix + "_LOG_LEVEL"); level != "" {
		log.SetMinLevel(log.ParseLevel(level))
	}
	log.Info(log.CatConfig, "pipewatch starting", "version", version, "config", configPath, "server", cfg.ServerURL)
	return cleanup, nil
}

func runApp(_ *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	cleanupLog, err := initLogging("pipewatch")
	if err != nil {
		return err
	}
	defer cleanupLog()

	sess, err := newSession(cfg, monitor.WithStartHook(rememberStartOptions(configPath)))
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopWatch := watchConfig(ctx, configPath, sess.monitor)
	defer stopWatch()

	sess.monitor.Start(ctx)

	model := dashboard.New(dashboard.Config{
		Source:        sess.monitor.Store(),
		Commands:      sess.monitor.Commands(),
		Messages:      sess.monitor,
		StartDefaults: startOptions(cfg.Start),
		ServerURL:     sess.client.BaseURL(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// rememberStartOptions persists the options of every accepted start so the
// next session pre-fills the form with them.
func rememberStartOptions(path string) func(command.StartOptions) {
	return func(opts command.StartOptions) {
		sc := config.StartConfig{DryRun: opts.DryRun, AIMode: opts.AIMode, Count: opts.Count}
		if err := config.SaveStartOptions(path, sc); err != nil {
			log.Warn(log.CatConfig, "saving start options failed", "path", path, "error", err)
		}
	}
}

// watchConfig re-applies page limits when the config file changes. The
// returned func stops the watcher.
func watchConfig(ctx context.Context, path string, m *monitor.Monitor) func() {
	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		log.Warn(log.CatWatcher, "config watcher unavailable", "path", path, "error", err)
		return func() {}
	}
	changes, err := w.Start()
	if err != nil {
		log.Warn(log.CatWatcher, "config watcher failed to start", "path", path, "error", err)
		return func() {}
	}
	log.SafeGo("config.reload", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				reloadLimits(path, m)
			}
		}
	})
	return func() { _ = w.Stop() }
}

func reloadLimits(path string, m *monitor.Monitor) {
	next, err := config.Load(path)
	if err != nil {
		log.Warn(log.CatConfig, "ignoring config change", "path", path, "error", err)
		return
	}
	m.Fetcher().SetLimits(next.Poll.LeadsLimit, next.Poll.LogsLimit)
	leads, logs := m.Fetcher().Limits()
	log.Info(log.CatConfig, "config reloaded", "leads_limit", leads, "logs_limit", logs)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
