package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/chazu/tokamak/pkg/engine"
	"github.com/chazu/tokamak/pkg/reactor"
)

const watchDebounce = 150 * time.Millisecond

func (a *app) watchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Rebuild whenever the description changes",
		Long: "watch builds FILE, then rebuilds it on every save. Shapes whose fingerprint\n" +
			"did not change keep their solids from the previous build.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &session{app: a, eng: a.newEngine(), path: args[0], out: a.outDir(out)}
			return s.watch(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from config)")
	return cmd
}

// session is one watch run. prev is the last reactor that built.
type session struct {
	*app
	eng  *engine.Engine
	path string
	out  string
	prev *reactor.Reactor
}

// rebuild evaluates the file and builds it, carrying unchanged solids over
// from the previous good build. A failed rebuild keeps prev.
func (s *session) rebuild(ctx context.Context, w io.Writer) error {
	r, err := s.load(s.eng, s.path)
	if err != nil {
		return err
	}
	carried, err := reactor.Carry(s.prev, r)
	if err != nil {
		return err
	}
	if len(carried) > 0 {
		s.log.Info("reused unchanged shapes", slog.Int("count", len(carried)))
	}
	if err := s.produce(ctx, w, r, s.out); err != nil {
		return err
	}
	s.prev = r
	return nil
}

func (s *session) watch(ctx context.Context, w io.Writer) error {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	// Editors often replace the file on save, so watch its directory.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	if err := s.rebuild(ctx, w); err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	fmt.Fprintf(w, "watching %s\n", s.path)

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			trigger = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", slog.Any("error", err))
		case <-trigger:
			trigger = nil
			if err := s.rebuild(ctx, w); err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
			}
		}
	}
}
