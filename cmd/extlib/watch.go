package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/standardbeagle/extlib/internal/project"
	"github.com/standardbeagle/extlib/internal/projectsync"
	"github.com/standardbeagle/extlib/internal/vfs"

	"github.com/urfave/cli/v2"
)

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openProject(c, true)
	if err != nil {
		return err
	}
	defer p.Close()

	if _, ok := p.WatchStats(); !ok {
		return fmt.Errorf("watching is disabled in the configuration")
	}

	if result, err := p.Sync(ctx, projectsync.Full); result == projectsync.Cancelled {
		return err
	}

	w := c.App.Writer
	printLibraries(w, collectLibraries(p, false))

	r := newReprinter(p, w, time.Duration(p.Config.Watch.DebounceMs)*time.Millisecond)
	sub := p.Subscribe(r)
	defer sub.Unsubscribe()
	defer r.stop()

	fmt.Fprintf(w, "Watching %s (Ctrl+C to stop)\n", p.Config.Project.Root)
	<-ctx.Done()

	if stats, ok := p.WatchStats(); ok {
		fmt.Fprintf(w, "Stopped after %d events (%d errors)\n", stats.EventsProcessed, stats.ErrorCount)
	}
	return nil
}

// reprinter coalesces filesystem events and prints the library table again
// when any library's set of valid roots changed.
type reprinter struct {
	p        *project.Project
	w        io.Writer
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	last    map[string]uint64
	stopped bool
}

func newReprinter(p *project.Project, w io.Writer, debounce time.Duration) *reprinter {
	r := &reprinter{p: p, w: w, debounce: debounce}
	r.last = r.fingerprints()
	return r
}

func (r *reprinter) fingerprints() map[string]uint64 {
	out := make(map[string]uint64)
	for _, e := range r.p.Registry.Entries() {
		out[e.ProviderKey] = e.Library.ValidRoots().Fingerprint()
	}
	return out
}

func (r *reprinter) FileCreated(vfs.Event) { r.schedule() }
func (r *reprinter) FileDeleted(vfs.Event) { r.schedule() }
func (r *reprinter) FileMoved(vfs.Event)   { r.schedule() }

func (r *reprinter) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.flush)
}

func (r *reprinter) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	current := r.fingerprints()
	if equalFingerprints(r.last, current) {
		return
	}
	r.last = current

	fmt.Fprintf(r.w, "\nLibraries changed at %s\n", time.Now().Format(time.TimeOnly))
	printLibraries(r.w, collectLibraries(r.p, false))
}

func (r *reprinter) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

func equalFingerprints(a, b map[string]uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

var _ vfs.Listener = (*reprinter)(nil)
