package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/entrhq/kustodash/pkg/browser"
	"github.com/entrhq/kustodash/pkg/config"
	"github.com/entrhq/kustodash/pkg/logging"
	"github.com/entrhq/kustodash/pkg/mcptool"
	"github.com/entrhq/kustodash/pkg/snapshot"
)

// ErrConflict is returned when a dashboard with the same name already
// exists at the target and force was not set.
var ErrConflict = errors.New("dashboard already exists at target (use force to overwrite)")

// Importer drives a dashboard definition through the target's import UI.
type Importer struct {
	Session browserSession
	Logger  *logging.Logger

	BrowserOpts browser.InitOptions
	Labels      config.ImportConfig
}

// NewImporter wires an importer from configuration.
func NewImporter(session browserSession, cfg *config.Config, logger *logging.Logger) *Importer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Importer{
		Session: session,
		Logger:  logger,
		BrowserOpts: browser.InitOptions{
			Kind:        browser.Kind(cfg.Browser.Kind),
			Headless:    cfg.Browser.Headless,
			ProfilePath: cfg.Browser.ProfilePath,
		},
		Labels: cfg.Import,
	}
}

// Import validates the definition file, then walks the target's import
// dialog: open, paste the definition, submit. A name conflict aborts
// with ErrConflict unless force is set, in which case the overwrite
// confirmation is clicked through. All file validation happens before
// any browser work so bad input never costs a browser launch.
func (im *Importer) Import(ctx context.Context, targetURL, jsonPath string, force bool) (*ImportResult, error) {
	if targetURL == "" {
		return nil, fmt.Errorf("import: target URL is required")
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", jsonPath, err)
	}
	info, err := ValidateDefinition(data)
	if err != nil {
		return nil, &mcptool.ValidationError{Msg: fmt.Sprintf("validate %s: %v", jsonPath, err)}
	}

	payload, err := stripMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", jsonPath, err)
	}

	if err := im.Session.Init(ctx, im.BrowserOpts); err != nil {
		return nil, fmt.Errorf("import %q: %w", info.Name, err)
	}
	defer im.closeSession(ctx)

	im.Logger.Infof("importing %q (%d tiles) to %s", info.Name, info.TileCount, targetURL)

	if err := im.Session.Navigate(ctx, targetURL); err != nil {
		return nil, err
	}

	if err := im.clickByLabel(ctx, im.Labels.ImportLabel); err != nil {
		return nil, err
	}

	text, err := im.Session.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	definitionRef, err := snapshot.FindRef(text, im.Labels.DefinitionLabel)
	if err != nil {
		return nil, fmt.Errorf("locate definition field: %w", err)
	}
	if err := im.Session.Type(ctx, definitionRef, im.Labels.DefinitionLabel, string(payload)); err != nil {
		return nil, err
	}

	if err := im.clickByLabel(ctx, im.Labels.SubmitLabel); err != nil {
		return nil, err
	}

	overwritten := false
	text, err = im.Session.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if strings.Contains(text, im.Labels.ConflictMarker) {
		if !force {
			return nil, fmt.Errorf("import %q: %w", info.Name, ErrConflict)
		}
		im.Logger.Warnf("%q already exists, overwriting", info.Name)
		if err := im.clickByLabel(ctx, im.Labels.OverwriteLabel); err != nil {
			return nil, err
		}
		overwritten = true
	}

	if err := im.Session.WaitForText(ctx, im.Labels.SuccessMarker, 0); err != nil {
		return nil, fmt.Errorf("import %q not confirmed: %w", info.Name, err)
	}

	im.Logger.Infof("imported %q", info.Name)
	return &ImportResult{
		Success:       true,
		DashboardName: info.Name,
		TargetURL:     targetURL,
		TileCount:     info.TileCount,
		Overwritten:   overwritten,
	}, nil
}

// clickByLabel resolves a ref for the label from a fresh snapshot and
// clicks it.
func (im *Importer) clickByLabel(ctx context.Context, label string) error {
	text, err := im.Session.Snapshot(ctx)
	if err != nil {
		return err
	}
	ref, err := snapshot.FindRef(text, label)
	if err != nil {
		return fmt.Errorf("locate %q: %w", label, err)
	}
	return im.Session.Click(ctx, ref, label)
}

func (im *Importer) closeSession(ctx context.Context) {
	if err := im.Session.Close(ctx); err != nil {
		im.Logger.Warnf("browser close failed: %v", err)
	}
}

// stripMetadata removes the exporter's _metadata block so the uploaded
// definition matches what the service originally produced.
func stripMetadata(data []byte) ([]byte, error) {
	var definition map[string]any
	if err := json.Unmarshal(data, &definition); err != nil {
		return nil, err
	}
	delete(definition, "_metadata")
	return json.Marshal(definition)
}
