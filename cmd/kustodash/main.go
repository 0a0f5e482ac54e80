// Package main provides the kustodash CLI for exporting and importing
// Azure Data Explorer dashboards through a browser automation tool
// server, plus an MCP server mode for editor agents.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/kustodash/pkg/browser"
	"github.com/entrhq/kustodash/pkg/config"
	"github.com/entrhq/kustodash/pkg/logging"
	"github.com/entrhq/kustodash/pkg/mcpserver"
	"github.com/entrhq/kustodash/pkg/mcptool"
	"github.com/entrhq/kustodash/pkg/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "export":
		err = runExport(ctx, args)
	case "export-all":
		err = runExportAll(ctx, args)
	case "import":
		err = runImport(ctx, args)
	case "validate":
		err = runValidate(args)
	case "config":
		err = runConfig(args)
	case "serve":
		err = runServe(ctx, args)
	case "version":
		fmt.Printf("kustodash v%s\n", pipeline.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		os.Exit(2)
	}

	if err != nil {
		newConsole(false).Errorf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `kustodash - Azure Data Explorer dashboard export/import automation

Usage: kustodash <command> [options]

Commands:
  export      Export a single dashboard to JSON
  export-all  Export all dashboards matching the configured creator
  import      Import a dashboard definition to a target cluster
  validate    Validate a dashboard JSON file without importing
  config      Print the effective configuration
  serve       Run as an MCP server on stdio
  version     Show version and exit

Examples:
  kustodash export -url https://dataexplorer.azure.com/dashboards/<id>
  kustodash export-all -creator "Alice"
  kustodash import -url https://dataexplorer.azure.com/dashboards -file exports/armprod.json -force
  kustodash validate -file exports/armprod.json

Run "kustodash <command> -h" for command options.
`)
}

// commonFlags registers the flags every browser-driving command shares.
type commonFlags struct {
	configPath string
	browser    string
	headless   bool
	quiet      bool
}

func (cf *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&cf.configPath, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&cf.browser, "browser", "", "Browser kind: chromium, firefox, or webkit")
	fs.BoolVar(&cf.headless, "headless", false, "Run the browser headless")
	fs.BoolVar(&cf.quiet, "quiet", false, "Suppress progress output")
}

// load resolves the effective configuration, with command-line flags
// taking precedence over the file and environment.
func (cf *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return nil, err
	}
	if cf.browser != "" {
		cfg.Browser.Kind = cf.browser
	}
	headlessSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			headlessSet = true
		}
	})
	if headlessSet {
		cfg.Browser.Headless = cf.headless
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, component string) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.Discard()
	}
	logger, err := logging.NewLogger(component, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return logging.Discard()
	}
	return logger
}

// newStack builds the invocation chain shared by the browser commands:
// tool client, retrying invoker, browser session.
func newStack(cfg *config.Config, logger *logging.Logger) (*mcptool.Client, *browser.Session) {
	client := mcptool.NewClient(logger)
	invoker := mcptool.NewRetryingInvoker(client, cfg.RetryPolicy(), logger)
	return client, browser.NewSession(invoker, logger)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	url := fs.String("url", "", "Dashboard URL (required)")
	output := fs.String("output", "", "Output file path (default: derived from the dashboard name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" {
		return errors.New("export: -url is required")
	}

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "export")
	defer logger.Close()
	con := newConsole(cf.quiet)

	client, session := newStack(cfg, logger)
	defer client.Close()

	con.Infof("exporting %s", *url)
	exporter := pipeline.NewExporter(session, cfg, nil, logger)
	path, err := exporter.ExportOne(ctx, *url, *output)
	if err != nil {
		return err
	}

	con.Successf("exported to %s", path)
	return nil
}

func runExportAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-all", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	listURL := fs.String("list-url", "", "Dashboards list URL (default: configured list URL)")
	creator := fs.String("creator", "", "Only export dashboards by this creator")
	outputDir := fs.String("output-dir", "", "Directory for exported files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	if *creator != "" {
		cfg.Dashboard.CreatorName = *creator
	}
	if *outputDir != "" {
		cfg.Export.OutputDir = *outputDir
	}
	logger := newLogger(cfg, "export-all")
	defer logger.Close()
	con := newConsole(cf.quiet)

	client, session := newStack(cfg, logger)
	defer client.Close()

	locator, err := pipeline.NewDownloadLocator(
		cfg.Export.DownloadsDir, cfg.Export.DownloadPattern, cfg.DownloadWindow(), logger)
	if err != nil {
		return err
	}

	con.Header("Bulk dashboard export")
	if cfg.Dashboard.CreatorName != "" {
		con.Infof("creator filter: %s", cfg.Dashboard.CreatorName)
	}

	exporter := pipeline.NewExporter(session, cfg, locator, logger)
	if *listURL != "" {
		exporter.ListURL = *listURL
	}

	report, err := exporter.ExportAll(ctx)
	if err != nil {
		return err
	}

	for _, result := range report.Results {
		if result.Success {
			con.Successf("%s -> %s", result.Name, result.OutputPath)
		} else {
			con.Warnf("%s failed: %s", result.Name, result.Error)
		}
	}
	con.Infof("found %d, exported %d, failed %d", report.TotalFound, report.Exported, report.Failed)

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d dashboards failed to export", report.Failed, report.TotalFound)
	}
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	url := fs.String("url", "", "Target dashboard URL (default: configured base URL)")
	file := fs.String("file", "", "Dashboard JSON file (required)")
	force := fs.Bool("force", false, "Overwrite an existing dashboard with the same name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("import: -file is required")
	}

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	target := *url
	if target == "" {
		target = cfg.Dashboard.BaseURL
	}
	logger := newLogger(cfg, "import")
	defer logger.Close()
	con := newConsole(cf.quiet)

	client, session := newStack(cfg, logger)
	defer client.Close()

	con.Infof("importing %s to %s", *file, target)
	importer := pipeline.NewImporter(session, cfg, logger)
	result, err := importer.Import(ctx, target, *file, *force)
	if err != nil {
		if errors.Is(err, pipeline.ErrConflict) {
			con.Warnf("a dashboard with this name already exists; rerun with -force to overwrite")
		}
		return err
	}

	if result.Overwritten {
		con.Successf("imported %q (%d tiles, overwrote existing)", result.DashboardName, result.TileCount)
	} else {
		con.Successf("imported %q (%d tiles)", result.DashboardName, result.TileCount)
	}
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "", "Dashboard JSON file (required)")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("validate: -file is required")
	}
	con := newConsole(*quiet)

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	info, err := pipeline.ValidateDefinition(data)
	if err != nil {
		return fmt.Errorf("%s is not importable: %w", *file, err)
	}

	con.Successf("%s is valid: %q, %d tiles", *file, info.Name, info.TileCount)
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	asJSON := fs.Bool("json", false, "Print as JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}

	var data []byte
	if *asJSON {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "mcp-server")
	defer logger.Close()

	return mcpserver.New(cfg, logger).Run(ctx)
}
