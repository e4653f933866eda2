package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from the .extlib.kdl file in projectRoot.
// It returns nil, nil when the file does not exist.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ConfigFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// Relative roots are resolved against the directory holding the config file
	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(projectRoot, cfg.Project.Root)
	} else if cfg.Project.Root == "" {
		cfg.Project.Root = projectRoot
	}
	if absRoot, err := filepath.Abs(cfg.Project.Root); err == nil {
		cfg.Project.Root = absRoot
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}

	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default("")
	cfg.Project.Name = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
				assignSimpleString(cn, "manifest", func(v string) { cfg.Project.Manifest = v })
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				case "move_window_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.MoveWindowMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				if nodeName(cn) == "max_goroutines" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxGoroutines = v
					}
				}
			}
		case "exclude":
			// An exclude node replaces the defaults
			cfg.Exclude = collectStringArgs(n)
		case "library":
			cfg.Libraries = append(cfg.Libraries, parseLibrary(n))
		default:
			log.Printf("WARNING: unknown node '%s' in %s ignored", nodeName(n), ConfigFileName)
		}
	}

	return cfg, nil
}

// parseLibrary reads a node of the form
//
//	library "python" {
//	    name "Gen files"
//	    glob "gen/**/*.py"
//	}
func parseLibrary(n *document.Node) Library {
	lib := Library{}
	if key, ok := firstStringArg(n); ok {
		lib.Key = key
	}
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "name":
			if s, ok := firstStringArg(cn); ok {
				lib.Name = s
			}
		case "output_group":
			if s, ok := firstStringArg(cn); ok {
				lib.OutputGroup = s
			}
		case "glob":
			lib.Globs = append(lib.Globs, collectStringArgs(cn)...)
		}
	}
	if lib.Name == "" {
		lib.Name = lib.Key
	}
	return lib
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs accepts both inline (exclude "a" "b") and block (exclude { "a"; "b" }) forms
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				// In block form the node name itself is the string value
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
