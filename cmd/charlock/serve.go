package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/character-lock/internal/eventbridge"
	"github.com/kingrea/character-lock/internal/settingsfile"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP hook bridge",
		Long: `Serves POST /hooks/before_task_enqueue and GET/PUT /settings until
interrupted. Edits to the settings file are applied live unless --no-watch is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if path := s.cfg.SettingsFilePath(); path != "" && s.cfg.WatchSettings() && !noWatch {
				w := settingsfile.NewWatcher(path, s.base, s.plugin.Store(), settingsfile.WithLogger(s.logger))
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			settings, err := eventbridge.SettingsFromConfig(s.cfg)
			if err != nil {
				return err
			}
			srv := eventbridge.NewServer(settings,
				eventbridge.WithDispatcher(s.host),
				eventbridge.WithSettingsStore(s.plugin.Store()),
				eventbridge.WithLogger(s.logger))
			if err := srv.Start(ctx); err != nil {
				if errors.Is(err, eventbridge.ErrServerDisabled) {
					cmd.Println("Hook bridge is disabled in .charlock/config.yaml")
					return nil
				}
				return err
			}
			cmd.Printf("Hook bridge listening on %s\n", srv.BaseURL())

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not re-apply settings file edits")
	return cmd
}
