package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/library"
	"github.com/standardbeagle/extlib/internal/projectsync"
	"github.com/standardbeagle/extlib/internal/version"
	"github.com/standardbeagle/extlib/pkg/pathutil"
)

const (
	// DefaultRootsLimit caps library_roots output when no limit is given
	DefaultRootsLimit = 500
	maxSuggestions    = 3
)

type LibraryRootsParams struct {
	Provider string `json:"provider,omitempty"`
	Name     string `json:"name,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type ContainsFileParams struct {
	Path string `json:"path"`
}

type SyncParams struct {
	Mode string `json:"mode,omitempty"`
}

// LibrarySummary is one entry of list_libraries
type LibrarySummary struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Location string `json:"location"`
	Tracked  int    `json:"tracked"`
	Valid    int    `json:"valid"`
}

type ListLibrariesResponse struct {
	Success   bool             `json:"success"`
	Syncing   bool             `json:"syncing"`
	Libraries []LibrarySummary `json:"libraries"`
}

type LibraryRootsResponse struct {
	Success   bool     `json:"success"`
	Provider  string   `json:"provider"`
	Name      string   `json:"name"`
	Icon      string   `json:"icon"`
	Roots     []string `json:"roots"`
	Total     int      `json:"total"`
	Truncated bool     `json:"truncated,omitempty"`
}

type ContainsFileResponse struct {
	Success  bool   `json:"success"`
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Tracked  bool   `json:"tracked"`
	Library  string `json:"library,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type SyncResponse struct {
	Success        bool     `json:"success"`
	Mode           string   `json:"mode"`
	Result         string   `json:"result"`
	Error          string   `json:"error,omitempty"`
	Libraries      int      `json:"libraries"`
	ProviderErrors []string `json:"provider_errors,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
}

// decodeParams tolerates an absent argument object
func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// SyncState reports the runner's progress in info
type SyncState struct {
	Running      bool     `json:"running"`
	Runs         int      `json:"runs"`
	LastMode     string   `json:"last_mode,omitempty"`
	LastResult   string   `json:"last_result,omitempty"`
	LastError    string   `json:"last_error,omitempty"`
	LastFinished string   `json:"last_finished,omitempty"`
	OutputGroups []string `json:"output_groups"`
}

func (s *Server) syncState() SyncState {
	runner := s.project.Runner
	stats := runner.Stats()
	state := SyncState{
		Running:      runner.IsRunning(),
		Runs:         stats.Runs,
		OutputGroups: []string{},
	}
	if stats.Runs > 0 {
		state.LastMode = stats.LastMode.String()
		state.LastResult = stats.LastResult.String()
		state.LastError = stats.LastError
		state.LastFinished = stats.LastFinished.Format(time.RFC3339)
	}
	if groups := runner.LastData().GroupNames(); groups != nil {
		state.OutputGroups = groups
	}
	return state
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var providers []string
	for _, p := range s.project.Registry.Providers() {
		providers = append(providers, p.ProviderKey())
	}

	return createJSONResponse(map[string]interface{}{
		"server_name":    "extlib-mcp-server",
		"server_version": version.FullInfo(),
		"build_id":       version.BuildID(),
		"go_version":     runtime.Version(),
		"project":        s.project.Config.Project.Name,
		"root":           s.project.Config.Project.Root,
		"providers":      providers,
		"sync":           s.syncState(),
		"tools": map[string]string{
			"list_libraries": "all synthetic libraries with root counts",
			"library_roots":  "valid roots of one library by provider key or name",
			"contains_file":  "which library has a file as a valid root",
			"sync":           "run a project sync and rebuild the libraries",
		},
	})
}

func (s *Server) handleListLibraries(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := s.project.Registry
	resp := ListLibrariesResponse{
		Success:   true,
		Syncing:   reg.IsSyncing(),
		Libraries: []LibrarySummary{},
	}

	for _, e := range reg.Entries() {
		stats := e.Library.Stats()
		resp.Libraries = append(resp.Libraries, LibrarySummary{
			Provider: e.ProviderKey,
			Name:     e.Library.PresentableText(),
			Icon:     e.Library.Icon(),
			Location: e.Library.LocationString(),
			Tracked:  stats.Tracked,
			Valid:    stats.Valid,
		})
	}

	debug.LogMCP("list_libraries: %d libraries (syncing=%v)\n", len(resp.Libraries), resp.Syncing)
	return createJSONResponse(resp)
}

func (s *Server) handleLibraryRoots(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params LibraryRootsParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("library_roots", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Provider == "" && params.Name == "" {
		return createErrorResponse("library_roots", errors.New("provider or name is required"))
	}

	reg := s.project.Registry
	if reg.IsSyncing() {
		return createErrorResponse("library_roots", errors.New("a project sync is in progress; retry when it finishes"))
	}

	var (
		lib *library.Library
		ok  bool
		key = params.Provider
	)
	if params.Provider != "" {
		lib, ok = reg.Library(params.Provider)
	} else {
		lib, ok = reg.LibraryByName(params.Name)
		if ok {
			key = providerKeyOf(reg, lib)
		}
	}
	if !ok {
		return s.libraryNotFound(params)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultRootsLimit
	}
	roots := lib.ValidRoots().Paths()
	resp := LibraryRootsResponse{
		Success:  true,
		Provider: key,
		Name:     lib.PresentableText(),
		Icon:     lib.Icon(),
		Roots:    roots,
		Total:    len(roots),
	}
	if len(roots) > limit {
		resp.Roots = roots[:limit]
		resp.Truncated = true
	}
	return createJSONResponse(resp)
}

func (s *Server) libraryNotFound(params LibraryRootsParams) (*mcp.CallToolResult, error) {
	reg := s.project.Registry
	extra := map[string]interface{}{}

	if params.Provider != "" {
		var keys []string
		for _, e := range reg.Entries() {
			keys = append(keys, e.ProviderKey)
		}
		if suggestions := library.SuggestNames(params.Provider, keys, maxSuggestions); len(suggestions) > 0 {
			extra["suggestions"] = suggestions
		}
		return createSmartErrorResponse("library_roots", fmt.Errorf("no library for provider %q", params.Provider), extra)
	}

	if suggestions := reg.SuggestNames(params.Name, maxSuggestions); len(suggestions) > 0 {
		extra["suggestions"] = suggestions
	}
	return createSmartErrorResponse("library_roots", fmt.Errorf("no library named %q", params.Name), extra)
}

func providerKeyOf(reg *library.Registry, lib *library.Library) string {
	for _, e := range reg.Entries() {
		if e.Library == lib {
			return e.ProviderKey
		}
	}
	return ""
}

func (s *Server) handleContainsFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ContainsFileParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("contains_file", fmt.Errorf("invalid parameters: %w", err))
	}
	if strings.TrimSpace(params.Path) == "" {
		return createErrorResponse("contains_file", errors.New("path is required"))
	}

	path := pathutil.ToAbsolute(params.Path, s.project.Config.Project.Root)

	resp := ContainsFileResponse{Success: true, Path: path}
	reg := s.project.Registry
	for _, e := range reg.Entries() {
		if e.Library.Tracks(path) {
			resp.Tracked = true
			break
		}
	}

	f, ok := s.project.FS.Resolve(path)
	if !ok {
		return createJSONResponse(resp)
	}
	resp.Exists = true

	if lib, found := reg.LibraryFor(f); found {
		resp.Library = lib.PresentableText()
		resp.Provider = providerKeyOf(reg, lib)
	}
	return createJSONResponse(resp)
}

func (s *Server) handleSync(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SyncParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("sync", fmt.Errorf("invalid parameters: %w", err))
	}
	mode, err := projectsync.ParseMode(params.Mode)
	if err != nil {
		return createErrorResponse("sync", err)
	}

	result, syncErr := s.project.Sync(ctx, mode)
	runStats := s.project.Runner.Stats()
	regStats := s.project.Registry.Stats()

	resp := SyncResponse{
		Success:        result == projectsync.Success,
		Mode:           mode.String(),
		Result:         result.String(),
		Libraries:      regStats.Libraries,
		ProviderErrors: regStats.ProviderErrors,
		DurationMs:     runStats.LastDuration.Milliseconds(),
	}
	if syncErr != nil {
		resp.Error = syncErr.Error()
	}
	debug.LogMCP("sync (%s): %s with %d libraries\n", mode, result, resp.Libraries)
	return createJSONResponse(resp)
}
