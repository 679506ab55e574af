package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/character-lock/internal/config"
	"github.com/kingrea/character-lock/internal/host"
	"github.com/kingrea/character-lock/internal/lock"
	"github.com/kingrea/character-lock/internal/logging"
	"github.com/kingrea/character-lock/internal/settingsfile"
	"github.com/kingrea/character-lock/plugins"
)

type rootOptions struct {
	projectDir string
	preset     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "charlock",
		Short: "Character lock prompts for video generation tasks",
		Long: `charlock prepends character-lock text to a task's prompt and negative
prompt before the host enqueues it, switching to a stronger lock for
"continue video" and "last video" tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.projectDir, "project", "", "project directory holding .charlock/ (default: current directory)")
	cmd.PersistentFlags().StringVar(&opts.preset, "preset", "", "preset to start from (default: config preset)")
	cmd.AddCommand(
		newApplyCmd(opts),
		newServeCmd(opts),
		newPanelCmd(opts),
		newPresetsCmd(opts),
	)
	return cmd
}

// session is the plugin loaded into an in-process host.
type session struct {
	cfg     *config.Config
	logger  *logging.Logger
	catalog *plugins.Catalog
	base    lock.Settings
	plugin  *plugins.CharacterLock
	host    *host.Registry
}

func openSession(opts *rootOptions) (*session, error) {
	projectDir := opts.projectDir
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		projectDir = cwd
	}
	if err := config.InitProjectDir(projectDir); err != nil {
		return nil, fmt.Errorf("initialize .charlock directory: %w", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogsDir())
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*session, error) {
		logger.Errorf("session: %v", err)
		logger.Close()
		return nil, err
	}
	catalog, err := plugins.DiscoverPresets(cfg)
	if err != nil {
		return fail(err)
	}
	presetID := opts.preset
	if presetID == "" {
		presetID = cfg.DefaultPreset()
	}
	base, err := catalog.Settings(presetID)
	if err != nil {
		return fail(err)
	}
	initial := base
	settingsPath := cfg.SettingsFilePath()
	overrides, ok, err := settingsfile.Load(settingsPath)
	if err != nil {
		return fail(err)
	}
	if ok {
		if overrides.IsZero() {
			logger.Printf("session: %s sets no fields, using preset %s as is", settingsPath, presetID)
		}
		initial = overrides.ApplyTo(base)
	}

	store := lock.NewStore(initial)
	store.OnUpdate(func(next lock.Settings) {
		logger.Printf("settings updated · enabled=%t neg_enabled=%t auto_strong=%t", next.Enabled, next.NegEnabled, next.AutoStrong)
	})
	plugin := plugins.NewCharacterLock(store, plugins.WithPluginLogger(logger))
	reg := host.NewRegistry()
	if err := plugins.Install(reg, plugin); err != nil {
		return fail(err)
	}
	logger.Printf("session opened · preset %s · settings file loaded: %t · components: %s",
		presetID, ok, strings.Join(reg.Components(), ", "))
	return &session{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		base:    base,
		plugin:  plugin,
		host:    reg,
	}, nil
}

func (s *session) Close() error {
	return s.logger.Close()
}
