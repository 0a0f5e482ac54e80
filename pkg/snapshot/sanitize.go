package snapshot

import (
	"regexp"
	"strings"
)

// maxFilenameLength bounds sanitized names; dashboard names are free text.
const maxFilenameLength = 200

var (
	filenameIllegal = regexp.MustCompile(`[^a-zA-Z0-9 ._-]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	dashRun         = regexp.MustCompile(`-+`)
)

// SanitizeFilename converts a dashboard name into a safe filename stem:
// characters unsafe in filenames are stripped, whitespace runs collapse to
// a single dash, and the result is lowercased.
//
//	SanitizeFilename("batch account")             == "batch-account"
//	SanitizeFilename("Service Fabric Dashboards!") == "service-fabric-dashboards"
func SanitizeFilename(name string) string {
	s := whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "-")
	s = filenameIllegal.ReplaceAllString(s, "")
	s = dashRun.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-.")
	if len(s) > maxFilenameLength {
		s = s[:maxFilenameLength]
	}
	return s
}
