package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/extlib/internal/config"
	"github.com/standardbeagle/extlib/internal/project"
	"github.com/standardbeagle/extlib/internal/version"

	"github.com/urfave/cli/v2"
)

var Version = version.Version

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	rootDir := c.String("root")

	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", rootDir, err)
	}

	if rootDir != "" {
		absRoot, err := filepath.Abs(rootDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootDir, err)
		}
		cfg.Project.Root = absRoot
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludeFlags...))
	}
	if manifest := c.String("manifest"); manifest != "" {
		cfg.Project.Manifest = manifest
	}

	return cfg, nil
}

// openProject loads the config and opens the project. Watching stays off
// unless the command needs it.
func openProject(c *cli.Context, watch bool) (*project.Project, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	cfg.Watch.Enabled = watch && cfg.Watch.Enabled
	return project.Open(c.Context, cfg, project.Options{})
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "extlib",
		Usage:                  "Expose build-generated files as synthetic external libraries",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/testdata/**')",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Project data manifest path (default .extlib/project.toml under the root)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Run a project sync and print the resulting libraries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Sync mode: full, incremental or no_build",
						Value:   "full",
					},
				},
				Action: syncCommand,
			},
			{
				Name:    "libraries",
				Aliases: []string{"ls"},
				Usage:   "List synthetic libraries after a full sync",
				Action:  librariesCommand,
			},
			{
				Name:      "show",
				Usage:     "Print the valid roots of one library",
				ArgsUsage: "<library name or provider key>",
				Action:    showCommand,
			},
			{
				Name:   "watch",
				Usage:  "Sync, then keep the libraries current as files change",
				Action: watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start MCP server on stdio",
				Action: mcpCommand,
			},
		},
		Action: librariesCommand,
	}
}

func run(ctx context.Context, args []string) error {
	return newApp().RunContext(ctx, args)
}

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
