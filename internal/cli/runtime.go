package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/0xthrpw/remand/internal/config"
	"github.com/0xthrpw/remand/internal/engine"
	"github.com/0xthrpw/remand/internal/store"
)

// runtime bundles the open store, ledger, and engine a command runs
// against. Close must be called when the command finishes.
type runtime struct {
	cfg    config.Config
	store  *store.Store
	ledger *store.Ledger
	engine *engine.Engine
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// openRuntime loads configuration, opens the store, and wires the
// engine. The sequence clock resumes past the highest persisted event so
// restarted processes never reuse a sequence number.
func openRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.StorePath != "" {
		cfg.Store = opts.StorePath
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store, err)
	}

	maxSeq, err := st.MaxEventSeq(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	custody := cfg.CustodyAddress()
	led := store.NewLedger(st, custody)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(opts),
	}))

	eng := engine.New(st, led, custody,
		engine.WithParams(cfg.Params()),
		engine.WithClock(engine.NewClockAt(maxSeq)),
		engine.WithLogger(logger),
	)

	return &runtime{cfg: cfg, store: st, ledger: led, engine: eng}, nil
}

func logLevel(opts *RootOptions) slog.Level {
	if opts.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
