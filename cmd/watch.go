package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
	"github.com/zjrosen/provchain/internal/log"
	"github.com/zjrosen/provchain/internal/watcher"
)

var watchVerbose bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Revalidate a directory whenever its documents change",
	Long: `Validate a directory once, then again after every change to a document
file below it, until interrupted. Changes are debounced by watch.debounce, and
unchanged files are served from the decode cache.

--verbose echoes log entries to stderr as they are written.

Example:
  provchain watch -o text ./evidence`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "echo log entries to stderr")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := cfg.DocumentsDir
	if len(args) == 1 {
		dir = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchVerbose {
		echoLogs(ctx, cmd.ErrOrStderr())
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	w, err := watcher.New(watcher.Config{
		Dir:        dir,
		Extensions: watcher.DefaultExtensions,
		Debounce:   cfg.Watch.Debounce,
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	out := cmd.ErrOrStderr()
	revalidate := func() {
		report, err := rt.service.ValidateDirectory(ctx, dir)
		if err == nil {
			err = rt.formatter.FormatReport(report)
		} else if structural, ok := appprov.AsStructuralErrors(err); ok {
			err = rt.formatter.FormatStructural(structural)
		}
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}

	revalidate()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			log.Debug(log.CatWatcher, "documents changed, revalidating", "dir", dir)
			revalidate()
		}
	}
}

// echoLogs copies info-and-above log entries to w until ctx ends.
// A discarding logger is installed when debug logging is off.
func echoLogs(ctx context.Context, w io.Writer) {
	entries := log.Subscribe(ctx, log.LevelInfo)
	if entries == nil {
		log.InitWithWriter(io.Discard)
		entries = log.Subscribe(ctx, log.LevelInfo)
	}
	go func() {
		for ev := range entries {
			_, _ = io.WriteString(w, ev.Payload.String())
		}
	}()
}
