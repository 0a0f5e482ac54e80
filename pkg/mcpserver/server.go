// Package mcpserver exposes the dashboard operations as MCP tools, so
// editor agents can drive exports and imports over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/entrhq/kustodash/pkg/browser"
	"github.com/entrhq/kustodash/pkg/config"
	"github.com/entrhq/kustodash/pkg/logging"
	"github.com/entrhq/kustodash/pkg/mcptool"
	"github.com/entrhq/kustodash/pkg/pipeline"
)

var serverImpl = &mcp.Implementation{
	Name:    "kusto-dashboard-manager",
	Version: pipeline.Version,
}

// Server wires the pipelines behind MCP tool handlers. The operation
// funcs are swappable so handlers can be tested without a browser.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	exportOne func(ctx context.Context, url, outputPath string) (string, error)
	exportAll func(ctx context.Context, listURL string) (*pipeline.ExportReport, error)
	importOne func(ctx context.Context, url, jsonPath string, force bool) (*pipeline.ImportResult, error)
}

// New builds a server whose tools run the real browser pipelines.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{cfg: cfg, logger: logger}
	s.exportOne = s.runExportOne
	s.exportAll = s.runExportAll
	s.importOne = s.runImport
	return s
}

// Run serves the tools over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := mcp.NewServer(serverImpl, nil)
	s.register(srv)
	s.logger.Infof("mcp server listening on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) register(srv *mcp.Server) {
	srv.AddTool(&mcp.Tool{
		Name:        "export_dashboard",
		Description: "Export an Azure Data Explorer dashboard to JSON",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Dashboard URL (https://dataexplorer.azure.com/dashboards/...)"},
				"outputPath": {"type": "string", "description": "Optional output file path (default: derived from the dashboard name)"}
			},
			"required": ["url"]
		}`),
	}, s.handleExport)

	srv.AddTool(&mcp.Tool{
		Name:        "export_all_dashboards",
		Description: "Export all dashboards matching the configured creator (bulk export)",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"listUrl": {"type": "string", "description": "Dashboards list URL (default: configured list URL)"}
			}
		}`),
	}, s.handleExportAll)

	srv.AddTool(&mcp.Tool{
		Name:        "import_dashboard",
		Description: "Import a dashboard from JSON to Azure Data Explorer",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Target dashboard URL or base URL"},
				"jsonPath": {"type": "string", "description": "Path to the JSON file containing the dashboard definition"},
				"force": {"type": "boolean", "description": "Overwrite if a dashboard with the same name exists", "default": false}
			},
			"required": ["url", "jsonPath"]
		}`),
	}, s.handleImport)

	srv.AddTool(&mcp.Tool{
		Name:        "validate_dashboard",
		Description: "Validate a dashboard JSON file without importing it",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"jsonPath": {"type": "string", "description": "Path to the JSON file to validate"}
			},
			"required": ["jsonPath"]
		}`),
	}, s.handleValidate)
}

func (s *Server) handleExport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		URL        string `json:"url"`
		OutputPath string `json:"outputPath"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return toolError(err), nil
	}
	if args.URL == "" {
		return toolError(fmt.Errorf("url is required")), nil
	}

	path, err := s.exportOne(ctx, args.URL, args.OutputPath)
	if err != nil {
		return toolError(err), nil
	}
	return toolResult(map[string]any{
		"success":    true,
		"url":        args.URL,
		"outputPath": path,
	})
}

func (s *Server) handleExportAll(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ListURL string `json:"listUrl"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return toolError(err), nil
	}
	if args.ListURL == "" {
		args.ListURL = s.cfg.ListURL()
	}

	report, err := s.exportAll(ctx, args.ListURL)
	if err != nil {
		return toolError(err), nil
	}
	return toolResult(report)
}

func (s *Server) handleImport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		URL      string `json:"url"`
		JSONPath string `json:"jsonPath"`
		Force    bool   `json:"force"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return toolError(err), nil
	}
	if args.URL == "" || args.JSONPath == "" {
		return toolError(fmt.Errorf("url and jsonPath are required")), nil
	}

	result, err := s.importOne(ctx, args.URL, args.JSONPath, args.Force)
	if err != nil {
		return toolError(err), nil
	}
	return toolResult(result)
}

// handleValidate never reports a protocol or tool error for bad files:
// the validation verdict is the result.
func (s *Server) handleValidate(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		JSONPath string `json:"jsonPath"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return toolError(err), nil
	}
	if args.JSONPath == "" {
		return toolError(fmt.Errorf("jsonPath is required")), nil
	}

	data, err := os.ReadFile(args.JSONPath)
	if err != nil {
		return toolResult(map[string]any{"valid": false, "errors": []string{err.Error()}})
	}

	info, err := pipeline.ValidateDefinition(data)
	if err != nil {
		return toolResult(map[string]any{"valid": false, "errors": []string{err.Error()}})
	}
	return toolResult(map[string]any{
		"valid":     true,
		"name":      info.Name,
		"tileCount": info.TileCount,
	})
}

// runExportOne is the production export_dashboard path: a fresh tool
// client, retrying invoker, and browser session per call.
func (s *Server) runExportOne(ctx context.Context, url, outputPath string) (string, error) {
	client := mcptool.NewClient(s.logger)
	defer client.Close()

	exporter := pipeline.NewExporter(s.newSession(client), s.cfg, nil, s.logger)
	return exporter.ExportOne(ctx, url, outputPath)
}

func (s *Server) runExportAll(ctx context.Context, listURL string) (*pipeline.ExportReport, error) {
	client := mcptool.NewClient(s.logger)
	defer client.Close()

	locator, err := pipeline.NewDownloadLocator(
		s.cfg.Export.DownloadsDir, s.cfg.Export.DownloadPattern, s.cfg.DownloadWindow(), s.logger)
	if err != nil {
		return nil, err
	}

	exporter := pipeline.NewExporter(s.newSession(client), s.cfg, locator, s.logger)
	exporter.ListURL = listURL
	return exporter.ExportAll(ctx)
}

func (s *Server) runImport(ctx context.Context, url, jsonPath string, force bool) (*pipeline.ImportResult, error) {
	client := mcptool.NewClient(s.logger)
	defer client.Close()

	importer := pipeline.NewImporter(s.newSession(client), s.cfg, s.logger)
	return importer.Import(ctx, url, jsonPath, force)
}

func (s *Server) newSession(client *mcptool.Client) *browser.Session {
	invoker := mcptool.NewRetryingInvoker(client, s.cfg.RetryPolicy(), s.logger)
	return browser.NewSession(invoker, s.logger)
}

func decodeArgs(req *mcp.CallToolRequest, out any) error {
	if req.Params.Arguments == nil {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func toolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		res := &mcp.CallToolResult{}
		res.SetError(fmt.Errorf("marshal result: %w", err))
		return res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{}
	res.SetError(err)
	return res
}
