package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extsock/bridge"
	"extsock/journal"
	"extsock/mcp"
	"extsock/portutil"

	"golang.org/x/sync/errgroup"
)

const (
	freePortTimeout = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ServeCmd represents the serve command structure
type ServeCmd struct {
	Port       int  `help:"Override the configured port"`
	NoFreePort bool `name:"no-free-port" help:"Do not kill a stale process holding the port"`
	NoMCP      bool `name:"no-mcp" help:"Run only the bridge, without the MCP stdio server"`
}

// Run implements the serve command execution
func (s *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if s.Port != 0 {
		cfg.Port = s.Port
	}
	logger, err := cli.setupLogging(cfg)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var (
		recorder bridge.CallRecorder
		lister   mcp.CallLister
	)
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open call journal: %w", err)
		}
		defer j.Close()
		recorder, lister = j, j
	}

	if cfg.FreePort && !s.NoFreePort {
		freeCtx, cancelFree := context.WithTimeout(ctx, freePortTimeout)
		err := portutil.Free(freeCtx, cfg.Port, 0)
		cancelFree()
		switch {
		case errors.Is(err, portutil.ErrUnsupported):
			logger.Warn("cannot check for stale listeners", "port", cfg.Port, "error", err)
		case err != nil:
			return fmt.Errorf("failed to free port %d: %w", cfg.Port, err)
		}
	}

	mgr := bridge.NewManager(bridge.Options{
		Addr:        cfg.Addr(),
		CallTimeout: cfg.CallTimeout,
		Handshake:   cfg.Handshake,
		Logger:      logger,
		Recorder:    recorder,
	})
	if err := mgr.Attach(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if !s.NoMCP {
		srv, err := mcp.NewServer(mcp.Options{
			Sender:  mgr,
			Status:  mgr,
			Calls:   lister,
			Config:  cfg,
			Version: appVersion,
			Logger:  logger,
		})
		if err != nil {
			closeManager(mgr)
			return err
		}
		g.Go(func() error {
			// The MCP client going away ends the process.
			defer cancel()
			if err := mcp.Serve(gctx, srv); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return closeManager(mgr)
	})
	return g.Wait()
}

func closeManager(mgr *bridge.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return mgr.Close(ctx)
}
