package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/character-lock/internal/host"
	"github.com/kingrea/character-lock/internal/lock"
	"github.com/kingrea/character-lock/internal/settingsfile"
)

func newPanelCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Open the settings panel in the terminal",
		Long: `Opens the settings panel. Applying writes all seven values to the
settings file (.charlock/settings.yaml by default), so the next charlock apply
picks them up and a running charlock serve re-applies them when it watches the
file. With settings_file: none the values only live until the panel exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root)
			if err != nil {
				return err
			}
			defer s.Close()

			if !persistSaves(s) {
				cmd.PrintErrln("settings_file is none: panel changes are not kept after exit")
			}
			panels := s.host.Panels(host.ComponentPrompt)
			if len(panels) == 0 {
				return fmt.Errorf("no panel inserted after %s", host.ComponentPrompt)
			}
			p := tea.NewProgram(panels[0](),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run panel: %w", err)
			}
			return nil
		},
	}
}

// persistSaves writes every store update to the settings file. It reports
// false when the project has no settings file.
func persistSaves(s *session) bool {
	path := s.cfg.SettingsFilePath()
	if path == "" {
		return false
	}
	s.plugin.Store().OnUpdate(func(next lock.Settings) {
		if err := settingsfile.Write(path, next); err != nil {
			s.logger.Errorf("panel: write %s: %v", path, err)
			return
		}
		s.logger.Printf("panel: settings written to %s", path)
	})
	return true
}
