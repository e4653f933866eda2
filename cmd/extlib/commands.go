package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/standardbeagle/extlib/internal/library"
	"github.com/standardbeagle/extlib/internal/project"
	"github.com/standardbeagle/extlib/internal/projectsync"
	"github.com/standardbeagle/extlib/pkg/pathutil"

	"github.com/urfave/cli/v2"
)

const maxSuggestions = 3

type libraryOutput struct {
	Provider string   `json:"provider"`
	Name     string   `json:"name"`
	Tracked  int      `json:"tracked"`
	Valid    int      `json:"valid"`
	Roots    []string `json:"roots,omitempty"`
}

type syncOutput struct {
	Mode           string          `json:"mode"`
	Result         string          `json:"result"`
	Error          string          `json:"error,omitempty"`
	ProviderErrors []string        `json:"provider_errors,omitempty"`
	Duplicates     []string        `json:"duplicates,omitempty"`
	OutputGroups   []string        `json:"output_groups,omitempty"`
	Libraries      []libraryOutput `json:"libraries"`
}

func syncCommand(c *cli.Context) error {
	mode, err := projectsync.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}

	p, err := openProject(c, false)
	if err != nil {
		return err
	}
	defer p.Close()

	result, syncErr := p.Sync(c.Context, mode)
	stats := p.Registry.Stats()
	out := syncOutput{
		Mode:           mode.String(),
		Result:         result.String(),
		ProviderErrors: stats.ProviderErrors,
		Duplicates:     stats.DuplicatesFound,
		OutputGroups:   p.Runner.LastData().GroupNames(),
		Libraries:      collectLibraries(p, false),
	}
	if syncErr != nil {
		out.Error = syncErr.Error()
	}

	w := c.App.Writer
	if c.Bool("json") {
		if err := writeJSON(w, out); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Sync (%s): %s\n", out.Mode, out.Result)
		if out.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", out.Error)
		}
		for _, e := range out.ProviderErrors {
			fmt.Fprintf(w, "  provider error: %s\n", e)
		}
		for _, d := range out.Duplicates {
			fmt.Fprintf(w, "  duplicate skipped: %s\n", d)
		}
		if len(out.OutputGroups) > 0 {
			fmt.Fprintf(w, "  output groups: %s\n", strings.Join(out.OutputGroups, ", "))
		}
		printLibraries(w, out.Libraries)
	}

	if result == projectsync.Failure {
		return fmt.Errorf("sync failed: %w", syncErr)
	}
	return nil
}

func librariesCommand(c *cli.Context) error {
	p, err := openProject(c, false)
	if err != nil {
		return err
	}
	defer p.Close()

	if result, err := p.Sync(c.Context, projectsync.Full); result == projectsync.Cancelled {
		return err
	}

	libs := collectLibraries(p, false)
	if c.Bool("json") {
		return writeJSON(c.App.Writer, libs)
	}
	printLibraries(c.App.Writer, libs)
	return nil
}

func showCommand(c *cli.Context) error {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return errors.New("show requires a library name or provider key")
	}

	p, err := openProject(c, false)
	if err != nil {
		return err
	}
	defer p.Close()

	if result, err := p.Sync(c.Context, projectsync.Full); result == projectsync.Cancelled {
		return err
	}

	for _, e := range p.Registry.Entries() {
		if e.ProviderKey != name && e.Library.Name() != name {
			continue
		}
		out := toOutput(p, e, true)
		if c.Bool("json") {
			return writeJSON(c.App.Writer, out)
		}
		fmt.Fprintf(c.App.Writer, "%s [%s] %d/%d valid\n", out.Name, out.Provider, out.Valid, out.Tracked)
		for _, root := range out.Roots {
			fmt.Fprintf(c.App.Writer, "  %s\n", root)
		}
		return nil
	}

	return notFoundError(p, name)
}

// notFoundError suggests close library names and provider keys
func notFoundError(p *project.Project, name string) error {
	var candidates []string
	for _, e := range p.Registry.Entries() {
		candidates = append(candidates, e.ProviderKey, e.Library.Name())
	}
	suggestions := library.SuggestNames(name, candidates, maxSuggestions)
	if len(suggestions) == 0 {
		return fmt.Errorf("no library named %q", name)
	}
	return fmt.Errorf("no library named %q (did you mean %s?)", name, strings.Join(suggestions, ", "))
}

func collectLibraries(p *project.Project, withRoots bool) []libraryOutput {
	entries := p.Registry.Entries()
	out := make([]libraryOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, toOutput(p, e, withRoots))
	}
	return out
}

func toOutput(p *project.Project, e library.Entry, withRoots bool) libraryOutput {
	stats := e.Library.Stats()
	out := libraryOutput{
		Provider: e.ProviderKey,
		Name:     e.Library.PresentableText(),
		Tracked:  stats.Tracked,
		Valid:    stats.Valid,
	}
	if withRoots {
		out.Roots = pathutil.ToRelativeAll(e.Library.ValidRoots().Paths(), p.Config.Project.Root)
	}
	return out
}

func printLibraries(w io.Writer, libs []libraryOutput) {
	if len(libs) == 0 {
		fmt.Fprintln(w, "No libraries")
		return
	}
	for _, l := range libs {
		fmt.Fprintf(w, "%-24s %-16s %d/%d valid\n", l.Name, l.Provider, l.Valid, l.Tracked)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
