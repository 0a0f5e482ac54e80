package snapshot

import (
	"fmt"
	"regexp"
	"strings"
)

// ElementRef is an opaque handle to one node in an accessibility snapshot.
// It is only valid until the next page-state-changing action: resolve it
// from the current snapshot immediately before use and never cache it.
type ElementRef string

// ErrRefNotFound is returned when no element matching the requested label
// exists in the snapshot.
var ErrRefNotFound = fmt.Errorf("element ref not found in snapshot")

var refRe = regexp.MustCompile(`\[ref=([^\]]+)\]`)

// ResolveRef finds the ref of a control labelled label inside the row block
// whose row text contains context. This is how per-dashboard controls (the
// "additional options" menu button) are located: the dashboard name anchors
// the search to the right row so a control in a neighbouring row is never
// picked up.
func ResolveRef(snapshotText, context, label string) (ElementRef, error) {
	if context == "" {
		return "", fmt.Errorf("resolve ref: context is required")
	}
	if label == "" {
		return "", fmt.Errorf("resolve ref: label is required")
	}

	lines := strings.Split(snapshotText, "\n")
	for i, line := range lines {
		m := rowRe.FindStringSubmatch(line)
		if m == nil || !strings.Contains(m[1], context) {
			continue
		}

		// The control may sit on the row line itself or anywhere in the
		// block below it, up to the next row.
		if ref, ok := labelledRef(line, label); ok {
			return ref, nil
		}
		for j := i + 1; j < len(lines); j++ {
			if rowRe.MatchString(lines[j]) {
				break
			}
			if ref, ok := labelledRef(lines[j], label); ok {
				return ref, nil
			}
		}
		return "", fmt.Errorf("%w: no %q control in row for %q", ErrRefNotFound, label, context)
	}

	return "", fmt.Errorf("%w: no row matching %q", ErrRefNotFound, context)
}

// FindRef finds the ref of the first element whose line mentions label
// anywhere in the snapshot. Used for page-level controls such as the
// "Download" menu item that appears after opening an options menu.
func FindRef(snapshotText, label string) (ElementRef, error) {
	if label == "" {
		return "", fmt.Errorf("find ref: label is required")
	}

	for _, line := range strings.Split(snapshotText, "\n") {
		if ref, ok := labelledRef(line, label); ok {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w: no element matching %q", ErrRefNotFound, label)
}

func labelledRef(line, label string) (ElementRef, bool) {
	if !strings.Contains(strings.ToLower(line), strings.ToLower(label)) {
		return "", false
	}
	m := refRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return ElementRef(m[1]), true
}
