// Package cli implements the tokamak commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/tokamak/internal/config"
	"github.com/chazu/tokamak/internal/telemetry"
	"github.com/chazu/tokamak/pkg/engine"
	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/kernel/sdfx"
	"github.com/chazu/tokamak/pkg/reactor"
	"github.com/chazu/tokamak/pkg/shape"
	"github.com/chazu/tokamak/pkg/store"
	"github.com/chazu/tokamak/pkg/tessellate"
)

var version = "dev"

// app carries what every command needs once the config is loaded.
type app struct {
	configPath string
	noStore    bool
	volumes    bool // print member volumes after a build

	cfg      config.Config
	log      *slog.Logger
	kernel   kernel.Kernel
	shutdown func(context.Context) error
}

// NewRootCmd returns the tokamak command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tokamak",
		Short: "Parametric fusion reactor geometry",
		Long: "tokamak builds reactor assemblies from 2D profiles described in a small Lisp,\n" +
			"exports STL meshes and a neutronics manifest, and rebuilds only what changed.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.WithoutCancel(cmd.Context()))
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Config file (default: $"+config.EnvPath+")")
	root.PersistentFlags().BoolVar(&a.noStore, "no-store", false, "Skip the artifact cache and build history")

	root.AddCommand(
		a.buildCmd(),
		a.fingerprintCmd(),
		a.validateCmd(),
		a.profileCmd(),
		a.watchCmd(),
		a.historyCmd(),
		a.exampleCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) setup(ctx context.Context, stderr io.Writer) error {
	cfg, err := config.Load(config.Path(a.configPath))
	if err != nil {
		return err
	}
	if a.noStore {
		cfg.Store.Disabled = true
	}
	a.cfg = cfg

	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(stderr, opts)
	} else {
		h = slog.NewTextHandler(stderr, opts)
	}
	a.log = slog.New(h)
	shape.SetLogger(a.log)
	engine.SetLogger(a.log)

	a.shutdown, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "tokamak",
		ServiceVersion: version,
		Traces:         cfg.Telemetry.Traces,
		Metrics:        cfg.Telemetry.Metrics,
		Writer:         stderr,
	})
	if err != nil {
		return err
	}

	a.kernel = sdfx.New(
		sdfx.WithMeshCells(cfg.Kernel.MeshCells),
		sdfx.WithVolumeCells(cfg.Kernel.VolumeCells),
		sdfx.WithCurveSamples(cfg.Kernel.CurveSamples),
	)
	return nil
}

func (a *app) reactorOptions() []reactor.Option {
	return []reactor.Option{
		reactor.WithWorkers(a.cfg.Build.Workers),
		reactor.WithLogger(a.log),
	}
}

func (a *app) newEngine() *engine.Engine {
	return engine.NewEngine(a.kernel, a.reactorOptions()...)
}

// load evaluates a reactor description file.
func (a *app) load(eng *engine.Engine, path string) (*reactor.Reactor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		msgs := make([]string, len(evalErrs))
		for i, e := range evalErrs {
			msgs[i] = fmt.Sprintf("%s: %s", filepath.Base(path), e.Error())
		}
		return nil, errors.New(strings.Join(msgs, "\n"))
	}
	return r, nil
}

// stores opens the artifact cache and history ledger unless disabled.
// The returned closer is always safe to call.
func (a *app) stores() (*store.Artifacts, *store.History, func(), error) {
	if a.cfg.Store.Disabled {
		return nil, nil, func() {}, nil
	}
	acfg := store.DefaultArtifactConfig(a.cfg.Store.Artifacts)
	if a.cfg.Store.InMemory {
		acfg = store.InMemoryArtifactConfig()
	}
	acfg.Logger = a.log.With(slog.String("component", "artifacts"))
	arts, err := store.OpenArtifacts(acfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if a.cfg.Store.History == "" {
		return arts, nil, func() { arts.Close() }, nil
	}
	hist, err := store.OpenHistory(a.cfg.Store.History)
	if err != nil {
		arts.Close()
		return nil, nil, nil, err
	}
	return arts, hist, func() {
		hist.Close()
		arts.Close()
	}, nil
}

// produce builds r, writes its meshes and manifest into dir and records
// the build.
func (a *app) produce(ctx context.Context, w io.Writer, r *reactor.Reactor, dir string) error {
	if v := r.Validate(); !v.OK() {
		return v.Err()
	}
	arts, hist, closeStores, err := a.stores()
	if err != nil {
		return err
	}
	defer closeStores()

	res, err := r.Build(ctx)
	if hist != nil {
		if _, herr := hist.Record(ctx, r.Name(), res, err); herr != nil {
			a.log.Warn("history not recorded", slog.Any("error", herr))
		}
	}
	if err != nil {
		return err
	}

	var mesher tessellate.Mesher
	if arts != nil {
		mesher = arts.Mesh
	}
	files, err := tessellate.ExportSTL(ctx, r, dir, mesher)
	if err != nil {
		return err
	}
	manifest := filepath.Join(dir, "neutronics.json")
	if err := r.SaveNeutronicsDescription(manifest); err != nil {
		return err
	}

	fmt.Fprintf(w, "reactor %s  %s  (%d shapes, %d rebuilt, %s)\n",
		r.Name(), res.Fingerprint.Short(), len(res.Shapes), res.Rebuilt, res.Took.Round(1e6))
	for _, f := range files {
		fmt.Fprintf(w, "  %-28s %8d triangles  %s\n", f.Name, f.Triangles, f.Path)
	}
	fmt.Fprintf(w, "  manifest %s\n", manifest)
	if a.volumes {
		var vol reactor.Volumer
		if arts != nil {
			vol = arts.Volume
		}
		vols, err := r.Volumes(ctx, vol)
		if err != nil {
			return err
		}
		for _, name := range r.Names() {
			fmt.Fprintf(w, "  %-28s %12.1f mm3\n", name, vols[name])
		}
	}
	if arts != nil {
		hits, misses := arts.Stats()
		a.log.Debug("artifact cache", slog.Int64("hits", hits), slog.Int64("misses", misses))
	}
	return nil
}
