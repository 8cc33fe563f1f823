package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/intrinsic/engine/internal/config"
	"github.com/intrinsic/engine/internal/core/ecs"
	coresys "github.com/intrinsic/engine/internal/core/system"
	"github.com/intrinsic/engine/internal/data"
	"github.com/intrinsic/engine/internal/engine"
	"github.com/intrinsic/engine/internal/persist"
	"github.com/intrinsic/engine/internal/render"
	"github.com/intrinsic/engine/internal/scripting"
	"github.com/intrinsic/engine/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Printf("\033[36;1m  │\033[0m %-41s \033[36;1m│\033[0m\n", name+"  v0.1.0")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Host ───────────────────────────────────────────────────────────

type storage struct {
	descriptors ecs.DescriptorStore
	snapshots   persist.SnapshotStore
	close       func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	switch cfg.Storage.Backend {
	case "", "files":
		return &storage{
			descriptors: ecs.NewDirStore(cfg.Storage.Dir),
			snapshots:   persist.FileSnapshots{Path: filepath.Join(cfg.Storage.Dir, "entities.json")},
			close:       func() {},
		}, nil
	case "postgres":
		db, err := persist.Open(ctx, cfg.Database, log.Named("db"))
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &storage{
			descriptors: persist.NewDescriptorRepo(db),
			snapshots:   persist.NewSnapshotRepo(db),
			close:       db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// countingSubmitter stands in for a GPU backend and tracks draw volume.
type countingSubmitter struct {
	calls map[string]int
}

func (c *countingSubmitter) Submit(pass string, items []render.Submission) {
	c.calls[pass] += len(items)
}

func run() error {
	// 1. Load config
	cfgPath := "config/intrinsic.toml"
	if p := os.Getenv("INTRINSIC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Engine.Name)

	// 3. Storage
	printSection("Storage")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()
	printOK(fmt.Sprintf("backend %s", cfg.Storage.Backend))

	// 4. Engine and content
	printSection("World")
	eng, err := engine.New(cfg, nil, log)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := eng.LoadDescriptors(ctx, store.descriptors); err != nil {
		log.Warn("some descriptors failed to load", zap.Error(err))
	}
	entities, err := eng.LoadEntities(ctx, store.snapshots)
	if err != nil {
		log.Warn("some entities failed to load", zap.Error(err))
	}
	printStat("Post effects", eng.PostEffects.Len())
	printStat("Meshes", eng.MeshData.Len())
	printStat("Entities", entities)

	passTable, err := data.LoadRenderPassTable(cfg.Render.PassesFile)
	if err != nil {
		return fmt.Errorf("render passes: %w", err)
	}
	submitter := &countingSubmitter{calls: make(map[string]int)}
	passes, err := eng.NewRenderPasses(passTable, submitter)
	if err != nil {
		return fmt.Errorf("render passes: %w", err)
	}
	printStat("Render passes", len(passes))

	// 5. Scripts
	console := scripting.NewConsole(eng.World, log.Named("lua"))
	defer console.Close()
	if err := console.LoadDir(cfg.Engine.ScriptsDir); err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	printOK("scripts loaded")
	fmt.Println()

	// 6. Systems
	blend := system.NewPostEffectBlendSystem(eng.PostEffects, log)
	if eng.PostEffects.ByName("default").IsValid() {
		_ = blend.Transition("default", 0)
	}
	renderSys := system.NewRenderSystem(passes, eng.Cameras, log)
	persistSys := system.NewPersistenceSystem(eng.World, store.descriptors, store.snapshots, eng.Bus, log, cfg.Storage.SaveIntervalTicks)

	runner := coresys.NewRunner()
	runner.Register(system.NewScriptSystem(console))
	runner.Register(system.NewEventDispatchSystem(eng.Bus))
	runner.Register(system.NewSwarmSystem(eng.Swarms))
	runner.Register(system.NewTransformSystem(eng.Nodes, eng.Bus))
	runner.Register(system.NewCameraSystem(eng.Cameras))
	runner.Register(blend)
	runner.Register(renderSys)
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(eng.World, log))

	// 7. Tick loop until SIGINT/SIGTERM
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("Ready")
	printReady(fmt.Sprintf("tick loop started (tick: %s)", cfg.Engine.TickRate))
	fmt.Println()

	runner.Run(runCtx, cfg.Engine.TickRate)
	stop()

	// 8. Shutdown
	log.Info("shutting down", zap.Any("drawCalls", submitter.calls))
	for _, st := range runner.Stats() {
		log.Debug("system stats", zap.String("system", st.Name), zap.Stringer("phase", st.Phase),
			zap.Int64("runs", st.Runs), zap.Duration("avg", st.Avg), zap.Duration("max", st.Max))
	}

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	err = persistSys.SaveAll(saveCtx)
	renderSys.Destroy()
	if err = errors.Join(err, eng.Close()); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("engine stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
