package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/mcp"
	"github.com/standardbeagle/extlib/internal/project"
	"github.com/standardbeagle/extlib/internal/projectsync"

	"github.com/urfave/cli/v2"
)

func mcpCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if debug.IsDebugEnabled() {
		if path, err := debug.InitDebugLogFile(); err == nil {
			defer debug.CloseDebugLog()
			fmt.Fprintf(os.Stderr, "Debug log: %s\n", path)
		}
	}

	p, err := openProject(c, true)
	if err != nil {
		return err
	}
	defer p.Close()

	server, err := mcp.NewServer(p)
	if err != nil {
		return err
	}

	wait := startInitialSync(ctx, p)
	defer wait()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// syncStartSignal closes started the first time a sync begins
type syncStartSignal struct {
	once    sync.Once
	started chan struct{}
}

func (s *syncStartSignal) OnSyncStart(context.Context, projectsync.Mode) {
	s.once.Do(func() { close(s.started) })
}

func (s *syncStartSignal) AfterSync(context.Context, projectsync.Result) {}

// startInitialSync runs a full sync in the background and returns once the
// registry has been told the sync started, so tools answering from then on
// report syncing until it finishes. The returned func cancels the sync and
// waits for it.
func startInitialSync(ctx context.Context, p *project.Project) func() {
	// Listeners registered later hear OnSyncStart after the registry did
	start := &syncStartSignal{started: make(chan struct{})}
	p.Runner.AddListener(start)

	syncCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Sync(syncCtx, projectsync.Full); err != nil {
			debug.LogMCP("initial sync: %v\n", err)
		}
	}()

	select {
	case <-start.started:
	case <-done:
	}

	return func() {
		cancel()
		<-done
	}
}
