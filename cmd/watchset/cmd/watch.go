package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/watchset/internal/control"
	"github.com/Aman-CERP/watchset/internal/output"
	"github.com/Aman-CERP/watchset/internal/watchset"
)

// watchFlags holds flags for the watch command.
type watchFlags struct {
	inventory    string
	exec         string
	debounce     time.Duration
	pollFallback bool
	jsonOutput   bool
	once         bool
	lockDir      string
	noLock       bool
}

// newWatchCmd creates the watch command.
func newWatchCmd(g *globalOptions) *cobra.Command {
	f := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Watch files and report coalesced changes",
		Long: `Watch files for content changes. Every burst of writes produces one
"changed" event; with --exec the command runs once per event, never
concurrently with itself. The changed paths are passed in WATCHSET_CHANGED.

Files may be given as arguments, in an inventory file (--inventory), or
both. The inventory file is re-read whenever it is written.`,
		Example: `  watchset watch /srv/app/plugin.so
  watchset watch --inventory loaded.txt --exec "make reload"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g, f, args)
		},
	}

	cmd.Flags().StringVarP(&f.inventory, "inventory", "i", "", "File listing paths to watch (YAML or one per line)")
	cmd.Flags().StringVar(&f.exec, "exec", "", "Command to run on each change")
	cmd.Flags().DurationVar(&f.debounce, "debounce", 0, "Coalescing window (default from config, 200ms)")
	cmd.Flags().BoolVar(&f.pollFallback, "poll-fallback", false, "Poll files whose native watch cannot be created")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print events as JSON lines even on a terminal")
	cmd.Flags().BoolVar(&f.once, "once", false, "Exit after the first change")
	cmd.Flags().StringVar(&f.lockDir, "lock-dir", defaultLockDir(), "Directory for single-instance lock files")
	cmd.Flags().BoolVar(&f.noLock, "no-lock", false, "Allow several instances on the same inventory")

	return cmd
}

func defaultLockDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".watchset", "locks")
	}
	return filepath.Join(home, ".watchset", "locks")
}

func runWatch(cmd *cobra.Command, g *globalOptions, f *watchFlags, args []string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	if f.inventory == "" {
		f.inventory = cfg.Inventory
	}
	src, invPath, err := buildSource(args, f.inventory)
	if err != nil {
		return err
	}

	opts := watchset.Options{
		DebounceWindow: cfg.DebounceWindow(),
		PollFallback:   cfg.Watch.PollFallback || f.pollFallback,
		PollInterval:   cfg.PollInterval(),
		Logger:         g.logger,
	}
	if f.debounce > 0 {
		opts.DebounceWindow = f.debounce
	}

	command := cfg.Command
	if f.exec != "" {
		command = strings.Fields(f.exec)
	}

	if !f.noLock {
		l := lockFor(f.lockDir, args, invPath)
		if err := l.TryLock(); err != nil {
			return err
		}
		defer func() { _ = l.Unlock() }()
	}

	out := output.Auto(cmd.OutOrStdout())
	if f.jsonOutput {
		out = output.New(cmd.OutOrStdout(), output.FormatJSON)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set := watchset.New(opts)
	defer set.Stop()

	// One slot: a change arriving while the command runs queues exactly one
	// more run.
	changes := make(chan watchset.ChangeNotification, 1)
	set.OnNotify(func(n watchset.ChangeNotification) {
		select {
		case changes <- n:
		default:
			g.logger.Debug("change already queued", slog.Any("paths", n.Paths))
		}
	})

	ctrl := control.New(set, src, g.logger)
	defer ctrl.Close()

	if _, err := ctrl.Enable(ctx); err != nil {
		return err
	}
	if invPath != "" {
		// Diagnostics are also published on InventoryErrors.
		_ = ctrl.WatchInventory(ctx, invPath, watchset.Options{
			DebounceWindow: opts.DebounceWindow,
			Logger:         g.logger,
		})
	}

	backends := set.Backends()
	for _, p := range set.WatchedFiles() {
		out.Watching(p, backends[p])
	}

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		printDiagnostics(gctx, out, set.Errors(), ctrl.InventoryErrors())
		return nil
	})

	grp.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case n := <-changes:
				out.Changed(n)
				if len(command) > 0 {
					runCommand(gctx, cmd, g.logger, command, n.Paths)
				}
				if f.once {
					return errDone
				}
			}
		}
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, errDone) {
		return err
	}
	return nil
}

// printDiagnostics prints diagnostics from the watched files and the
// inventory watch until ctx is done. A nil channel is never ready.
func printDiagnostics(ctx context.Context, out *output.Writer, files, inv <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-files:
			out.Diagnostic(err)
		case err := <-inv:
			out.Diagnostic(err)
		}
	}
}

// errDone ends the run loop after --once.
var errDone = errors.New("done")

// runCommand runs the change command, logging failures without stopping
// the watch.
func runCommand(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, argv []string, paths []string) {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	c.Env = append(os.Environ(), "WATCHSET_CHANGED="+strings.Join(paths, string(os.PathListSeparator)))

	start := time.Now()
	if err := c.Run(); err != nil {
		logger.Warn("change command failed",
			slog.String("command", strings.Join(argv, " ")),
			slog.String("error", err.Error()))
		return
	}
	logger.Debug("change command finished",
		slog.String("command", strings.Join(argv, " ")),
		slog.Duration("took", time.Since(start)))
}
