// Package pipeline composes the snapshot parser, the browser session,
// and the filesystem into the export and import flows.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportResult records the outcome for a single dashboard.
type ExportResult struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	OutputPath string `json:"outputPath,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ExportReport summarizes a bulk export run. TotalFound counts the
// dashboards that matched the creator filter; Exported plus Failed
// always equals TotalFound.
type ExportReport struct {
	TotalFound int            `json:"totalFound"`
	Exported   int            `json:"exported"`
	Failed     int            `json:"failed"`
	Results    []ExportResult `json:"results"`
}

func (r *ExportReport) add(res ExportResult) {
	r.Results = append(r.Results, res)
	if res.Success {
		r.Exported++
	} else {
		r.Failed++
	}
}

// WriteManifest writes the report as manifest.json in dir, so a later
// import run can see what a bulk export produced.
func (r *ExportReport) WriteManifest(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ImportResult records the outcome of importing one dashboard definition.
type ImportResult struct {
	Success       bool   `json:"success"`
	DashboardName string `json:"dashboardName"`
	TargetURL     string `json:"targetUrl"`
	TileCount     int    `json:"tileCount"`
	Overwritten   bool   `json:"overwritten,omitempty"`
}
