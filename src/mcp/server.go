package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"sikuli-bot/src/artifact"
	"sikuli-bot/src/branch"
	"sikuli-bot/src/clock"
	"sikuli-bot/src/store"
)

// DefaultLogLines caps get_run_log output.
const DefaultLogLines = 200

// Server is the MCP server for sikuli-bot.
type Server struct {
	mcpServer *server.MCPServer
	store     store.Store
	scanner   *artifact.Scanner
	parser    *branch.Parser
	clock     clock.Clock
}

// NewServer creates a new MCP server over a run history. scanner and
// parser back pending_installer; with a nil scanner the tool is not
// registered.
func NewServer(st store.Store, scanner *artifact.Scanner, parser *branch.Parser, clk clock.Clock) *Server {
	s := server.NewMCPServer(
		"sikuli-bot",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	if clk == nil {
		clk = clock.Real()
	}

	srv := &Server{
		mcpServer: s,
		store:     st,
		scanner:   scanner,
		parser:    parser,
		clock:     clk,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List recent sikuli-bot runs, newest first. Each row has the status (passed, failed, no_tests, error), build, branch and failure counts. Use get_run for the failing tests of one run."),
		mcp.WithNumber("limit",
			mcp.Description("Max runs to return (default: 20)"),
		),
		mcp.WithString("branch",
			mcp.Description("Only runs of this branch (case-insensitive)"),
		),
	)

	getTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get one run in full: resolved remote and ref, failing tests (new ones listed separately), error and archived log path."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID from list_runs"),
		),
	)

	logTool := mcp.NewTool("get_run_log",
		mcp.WithDescription("Get the archived test log of a run, compressed: timestamps, hashes and long paths are shortened and repeated lines folded."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID from list_runs"),
		),
		mcp.WithNumber("max_lines",
			mcp.Description("Keep only the last N compressed lines (default: 200)"),
		),
	)

	healthTool := mcp.NewTool("branch_health",
		mcp.WithDescription("Classify the failing tests of a branch across its recent runs: tier 1 new in the latest run, tier 2 recurring, tier 3 intermittent or fixed."),
		mcp.WithString("branch",
			mcp.Required(),
			mcp.Description("Branch name as derived from the installer filename"),
		),
		mcp.WithNumber("window",
			mcp.Description("How many recent runs to examine (default: 10)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max tier 1 entries (default: 15)"),
		),
	)

	s.mcpServer.AddTool(listTool, s.handleListRuns)
	s.mcpServer.AddTool(getTool, s.handleGetRun)
	s.mcpServer.AddTool(logTool, s.handleGetRunLog)
	s.mcpServer.AddTool(healthTool, s.handleBranchHealth)

	if s.scanner != nil {
		pendingTool := mcp.NewTool("pending_installer",
			mcp.WithDescription("Show today's installers and logs and the installer the next run would test. Read-only: nothing is purged or installed."),
		)
		s.mcpServer.AddTool(pendingTool, s.handlePendingInstaller)
	}
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	branchName := request.GetString("branch", "")

	// Branch filtering happens after the query, so fetch everything then.
	queryLimit := limit
	if branchName != "" {
		queryLimit = 0
	}
	runs, err := s.store.ListRuns(ctx, queryLimit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	rows := []RunSummary{}
	for _, r := range runs {
		if branchName != "" && !strings.EqualFold(r.Branch, branchName) {
			continue
		}
		rows = append(rows, toSummary(r))
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return jsonResult(rows)
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toDetail(*run))
}

func (s *Server) handleGetRunLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}
	maxLines := request.GetInt("max_lines", DefaultLogLines)

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if run.LogPath == "" {
		return mcp.NewToolResultError(fmt.Sprintf("run %s has no archived log", runID)), nil
	}

	lines, err := readLines(run.LogPath)
	if errors.Is(err, os.ErrNotExist) {
		return mcp.NewToolResultError(fmt.Sprintf("log %s was purged", run.LogPath)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read log: %v", err)), nil
	}

	out := RunLog{RunID: runID, LogPath: run.LogPath, Lines: removeCommonPrefix(CompressLog(lines))}
	if out.Lines == nil {
		out.Lines = []string{}
	}
	if maxLines > 0 && len(out.Lines) > maxLines {
		out.Lines = out.Lines[len(out.Lines)-maxLines:]
		out.Truncated = true
	}
	return jsonResult(out)
}

func (s *Server) handleBranchHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	branchName := request.GetString("branch", "")
	if branchName == "" {
		return mcp.NewToolResultError("branch parameter is required"), nil
	}
	window := request.GetInt("window", DefaultHealthWindow)
	limit := request.GetInt("limit", DefaultTier1Limit)

	runs, err := s.store.ListRuns(ctx, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	return jsonResult(TierFailures(branchName, runs, window, limit))
}

func (s *Server) handlePendingInstaller(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := s.scanner.Scan(clock.StartOfDay(s.clock.Now()), false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}

	out := PendingInstaller{
		Installers: nonNil(sel.Installers),
		Logs:       nonNil(sel.Logs),
		Untested:   sel.Installer,
	}
	if sel.Installer != "" && s.parser != nil {
		if b, err := s.parser.Branch(sel.Installer); err != nil {
			out.BranchErr = err.Error()
		} else {
			out.Branch = b
		}
	}
	return jsonResult(out)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
