package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/watchset/internal/output"
	"github.com/Aman-CERP/watchset/internal/preflight"
	"github.com/Aman-CERP/watchset/internal/watchset"
)

// newCheckCmd creates the check command.
func newCheckCmd(g *globalOptions) *cobra.Command {
	var (
		inventoryPath string
		pollFallback  bool
		jsonOutput    bool
		strict        bool
		system        bool
	)

	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Report which files can be watched",
		Long: `Set up the watches once, print each active watch and every diagnostic,
then release them. With --strict a diagnostic makes the command fail.
--system adds the file descriptor and inotify limit checks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if inventoryPath == "" {
				inventoryPath = cfg.Inventory
			}
			src, _, err := buildSource(args, inventoryPath)
			if err != nil {
				return err
			}
			paths, err := src.Paths(cmd.Context())
			if err != nil {
				return err
			}

			out := output.Auto(cmd.OutOrStdout())
			if jsonOutput {
				out = output.New(cmd.OutOrStdout(), output.FormatJSON)
			}

			set := watchset.New(watchset.Options{
				DebounceWindow: cfg.DebounceWindow(),
				PollFallback:   cfg.Watch.PollFallback || pollFallback,
				PollInterval:   cfg.PollInterval(),
				Logger:         g.logger,
			})
			defer set.Stop()

			diags := set.SetWatchedFiles(paths)
			backends := set.Backends()
			for _, p := range set.WatchedFiles() {
				out.Watching(p, backends[p])
			}
			for _, d := range diags {
				out.Diagnostic(d)
			}
			out.Status(fmt.Sprintf("%d of %d watchable", set.Len(), len(paths)))

			if system {
				checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(true))
				results := checker.RunAll(cmd.Context(), len(paths))
				if out.Format() == output.FormatJSON {
					for _, r := range results {
						out.Status(fmt.Sprintf("%s %s: %s", r.Status, r.Name, r.Message))
					}
				} else {
					checker.PrintResults(results)
				}
				if strict && checker.HasCriticalFailures(results) {
					return fmt.Errorf("system limits too low for %d file(s)", len(paths))
				}
			}

			if strict && len(diags) > 0 {
				return fmt.Errorf("%d path(s) cannot be watched", len(diags))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inventoryPath, "inventory", "i", "", "File listing paths to watch (YAML or one per line)")
	cmd.Flags().BoolVar(&pollFallback, "poll-fallback", false, "Poll files whose native watch cannot be created")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON lines")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail if any path cannot be watched")
	cmd.Flags().BoolVar(&system, "system", false, "Also check file descriptor and inotify limits")

	return cmd
}
