package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingrea/character-lock/internal/host"
	"github.com/kingrea/character-lock/internal/task"
)

func newApplyCmd(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the character lock to one task descriptor",
		Long: `Reads a JSON task descriptor (stdin by default), runs the
before_task_enqueue hook on it and prints the result as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root)
			if err != nil {
				return err
			}
			defer s.Close()

			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}
			return runApply(s, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the descriptor from a file instead of stdin")
	return cmd
}

func runApply(s *session, in io.Reader, out io.Writer) error {
	var desc task.Descriptor
	dec := json.NewDecoder(in)
	dec.UseNumber()
	if err := dec.Decode(&desc); err != nil {
		return fmt.Errorf("decode task descriptor: %w", err)
	}
	if desc == nil {
		return fmt.Errorf("task descriptor must be a JSON object")
	}
	result, err := s.host.Dispatch(host.EventBeforeTaskEnqueue, desc)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
