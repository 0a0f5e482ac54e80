package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/kustodash/pkg/browser"
	"github.com/entrhq/kustodash/pkg/config"
	"github.com/entrhq/kustodash/pkg/logging"
	"github.com/entrhq/kustodash/pkg/snapshot"
)

// Version is stamped into the _metadata block of single exports.
const Version = "1.0.0"

// browserSession is the slice of browser.Session the pipelines drive.
type browserSession interface {
	Init(ctx context.Context, opts browser.InitOptions) error
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, ref snapshot.ElementRef, element string) error
	Type(ctx context.Context, ref snapshot.ElementRef, element, text string) error
	Snapshot(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (any, error)
	WaitForText(ctx context.Context, text string, timeout time.Duration) error
	Close(ctx context.Context) error
}

// downloadLocator finds the file a triggered download produced.
type downloadLocator interface {
	Locate(ctx context.Context, since time.Time) (string, error)
}

// Exporter drives the dashboard export flows. One browser session is
// launched per run and closed when the run finishes, regardless of
// per-dashboard failures.
type Exporter struct {
	Session browserSession
	Parser  *snapshot.Parser
	Locator downloadLocator
	Logger  *logging.Logger

	ListURL     string
	Filter      *snapshot.CreatorFilter
	OutputDir   string
	BrowserOpts browser.InitOptions

	ListReadyMarker string
	OptionsLabel    string
	DownloadLabel   string

	// now is swappable for deterministic metadata in tests.
	now func() time.Time
}

// NewExporter wires an exporter from configuration. The locator may be
// nil for callers that only use ExportOne.
func NewExporter(session browserSession, cfg *config.Config, locator downloadLocator, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.Discard()
	}
	parser := snapshot.NewParser()
	parser.BaseURL = cfg.Dashboard.BaseURL
	parser.Logger = logger

	var filter *snapshot.CreatorFilter
	if cfg.Dashboard.CreatorName != "" {
		filter = snapshot.NewCreatorFilter(cfg.Dashboard.CreatorName)
	}

	return &Exporter{
		Session: session,
		Parser:  parser,
		Locator: locator,
		Logger:  logger,
		ListURL: cfg.ListURL(),
		Filter:  filter,
		OutputDir: cfg.Export.OutputDir,
		BrowserOpts: browser.InitOptions{
			Kind:        browser.Kind(cfg.Browser.Kind),
			Headless:    cfg.Browser.Headless,
			ProfilePath: cfg.Browser.ProfilePath,
		},
		ListReadyMarker: cfg.Export.ListReadyMarker,
		OptionsLabel:    cfg.Export.OptionsLabel,
		DownloadLabel:   cfg.Export.DownloadLabel,
	}
}

// ExportAll exports every dashboard on the list page that passes the
// creator filter, via each row's options menu and download action.
// Failures to reach the list abort the run; per-dashboard failures are
// recorded in the report and the loop continues.
func (e *Exporter) ExportAll(ctx context.Context) (*ExportReport, error) {
	if err := e.Session.Init(ctx, e.BrowserOpts); err != nil {
		return nil, fmt.Errorf("export all: %w", err)
	}
	defer e.closeSession(ctx)

	records, err := e.listDashboards(ctx)
	if err != nil {
		return nil, fmt.Errorf("export all: %w", err)
	}

	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	report := &ExportReport{TotalFound: len(records)}
	e.Logger.Infof("exporting %d dashboards to %s", len(records), e.OutputDir)

	for i, rec := range records {
		e.Logger.Infof("[%d/%d] exporting %q", i+1, len(records), rec.Name)
		result := ExportResult{Name: rec.Name, URL: rec.URL}

		outputPath, err := e.exportRecord(ctx, rec)
		if err != nil {
			e.Logger.Errorf("export %q failed: %v", rec.Name, err)
			result.Error = err.Error()
		} else {
			result.Success = true
			result.OutputPath = outputPath
		}
		report.add(result)
	}

	if err := report.WriteManifest(e.OutputDir); err != nil {
		e.Logger.Warnf("manifest not written: %v", err)
	}
	return report, nil
}

// listDashboards navigates to the list page, waits for it to render, and
// parses the filtered dashboard records from a snapshot.
func (e *Exporter) listDashboards(ctx context.Context) ([]snapshot.DashboardRecord, error) {
	if err := e.Session.Navigate(ctx, e.ListURL); err != nil {
		return nil, err
	}
	if e.ListReadyMarker != "" {
		if err := e.Session.WaitForText(ctx, e.ListReadyMarker, 0); err != nil {
			return nil, err
		}
	}

	text, err := e.Session.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	records := e.Parser.Parse(text, e.Filter)
	e.Logger.Infof("found %d matching dashboards", len(records))
	return records, nil
}

// exportRecord downloads one dashboard through its row menu. Refs are
// resolved from a fresh snapshot before every click: the page re-renders
// after each menu interaction and stale refs dangle.
func (e *Exporter) exportRecord(ctx context.Context, rec snapshot.DashboardRecord) (string, error) {
	text, err := e.Session.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	optionsRef, err := snapshot.ResolveRef(text, rec.Name, e.OptionsLabel)
	if err != nil {
		return "", fmt.Errorf("locate options menu for %q: %w", rec.Name, err)
	}
	if err := e.Session.Click(ctx, optionsRef, e.OptionsLabel); err != nil {
		return "", err
	}

	text, err = e.Session.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	downloadRef, err := snapshot.FindRef(text, e.DownloadLabel)
	if err != nil {
		return "", fmt.Errorf("locate download action for %q: %w", rec.Name, err)
	}

	// Filesystem mtime granularity can be a full second; the slack keeps
	// a download landing in the trigger second from looking too old.
	since := time.Now().Add(-time.Second)
	if err := e.Session.Click(ctx, downloadRef, e.DownloadLabel); err != nil {
		return "", err
	}

	downloaded, err := e.Locator.Locate(ctx, since)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(downloaded)
	if err != nil {
		return "", fmt.Errorf("read download %s: %w", downloaded, err)
	}
	if err := VerifyDashboardID(data, rec.ID); err != nil {
		return "", err
	}

	outputPath := filepath.Join(e.OutputDir, snapshot.SanitizeFilename(rec.Name)+".json")
	if err := writePrettyJSON(outputPath, data); err != nil {
		return "", err
	}
	if err := os.Remove(downloaded); err != nil {
		e.Logger.Warnf("downloaded file %s not removed: %v", downloaded, err)
	}
	return outputPath, nil
}

// ExportOne exports a single dashboard by fetching its definition through
// the page's own API session, enriched with export metadata. The returned
// path is outputPath, or a derived OutputDir path when outputPath is "".
func (e *Exporter) ExportOne(ctx context.Context, url, outputPath string) (string, error) {
	id, err := dashboardIDFromURL(url)
	if err != nil {
		return "", err
	}

	if err := e.Session.Init(ctx, e.BrowserOpts); err != nil {
		return "", fmt.Errorf("export %s: %w", url, err)
	}
	defer e.closeSession(ctx)

	if err := e.Session.Navigate(ctx, url); err != nil {
		return "", err
	}

	definition, err := e.fetchDefinition(ctx, id)
	if err != nil {
		return "", err
	}

	definition["_metadata"] = map[string]any{
		"exportedAt":      e.clock().UTC().Format(time.RFC3339),
		"sourceUrl":       url,
		"dashboardId":     id,
		"exporterVersion": Version,
	}

	name, _ := definition["name"].(string)
	if name == "" {
		name = "dashboard"
	}
	if outputPath == "" {
		if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		outputPath = filepath.Join(e.OutputDir, snapshot.SanitizeFilename(name)+".json")
	}

	data, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode dashboard %q: %w", name, err)
	}
	if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", outputPath, err)
	}

	e.Logger.Infof("exported %q to %s", name, outputPath)
	return outputPath, nil
}

// fetchDefinition pulls the dashboard definition from the dashboards API
// inside the page, reusing the page's authentication.
func (e *Exporter) fetchDefinition(ctx context.Context, id string) (map[string]any, error) {
	script := fmt.Sprintf(`(async () => {
		const response = await fetch('https://dashboards.kusto.windows.net/dashboards/%s');
		if (!response.ok) {
			throw new Error('API request failed: ' + response.status);
		}
		return await response.json();
	})()`, id)

	value, err := e.Session.Evaluate(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("fetch dashboard definition: %w", err)
	}

	definition, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dashboard API returned %T, expected an object", value)
	}
	if _, hasName := definition["name"]; !hasName {
		if _, hasTiles := definition["tiles"]; !hasTiles {
			return nil, fmt.Errorf("dashboard API response missing name and tiles")
		}
	}
	return definition, nil
}

func (e *Exporter) closeSession(ctx context.Context) {
	if err := e.Session.Close(ctx); err != nil {
		e.Logger.Warnf("browser close failed: %v", err)
	}
}

func (e *Exporter) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// dashboardIDFromURL extracts the dashboard id from a dashboard URL,
// dropping any query string.
func dashboardIDFromURL(url string) (string, error) {
	trimmed := url
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	i := strings.LastIndexByte(trimmed, '/')
	if i < 0 || i == len(trimmed)-1 {
		return "", fmt.Errorf("invalid dashboard URL %q", url)
	}
	id := trimmed[i+1:]
	if !strings.Contains(url, "/dashboards/") {
		return "", fmt.Errorf("invalid dashboard URL %q", url)
	}
	return id, nil
}

// writePrettyJSON re-encodes data with stable two-space indentation so
// repeated exports of an unchanged dashboard are byte-identical.
func writePrettyJSON(path string, data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("decode downloaded definition: %w", err)
	}
	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	if err := os.WriteFile(path, append(pretty, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
