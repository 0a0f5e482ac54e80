package snapshot

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/entrhq/kustodash/pkg/logging"
)

// CreatorNone is the sentinel the dashboards list shows for legacy entries
// with no recorded creator. It is a first-class, matchable value: filtering
// by a creator name includes sentinel rows unless the caller opts out.
const CreatorNone = "--"

// DefaultBaseURL is the dashboard base used to build absolute URLs from the
// relative /dashboards/{id} links found in snapshots.
const DefaultBaseURL = "https://dataexplorer.azure.com/dashboards"

// DashboardRecord is one dashboard extracted from a list snapshot.
// Immutable once produced.
type DashboardRecord struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	ID           string `json:"id"`
	Creator      string `json:"creator"`
	LastModified string `json:"lastModified"`
}

// CreatorFilter restricts parsing to dashboards by a single creator.
// Matching is case-sensitive exact equality; this is a known limitation of
// the upstream list view, not something the parser normalizes away.
type CreatorFilter struct {
	// Creator is the exact display name to match.
	Creator string

	// IncludeLegacy also matches rows carrying the CreatorNone sentinel.
	IncludeLegacy bool
}

// NewCreatorFilter returns a filter for the given creator that includes
// legacy no-creator rows, which is what export runs want by default.
func NewCreatorFilter(creator string) *CreatorFilter {
	return &CreatorFilter{Creator: creator, IncludeLegacy: true}
}

// Matches reports whether a record with the given creator passes the
// filter. A nil filter matches everything.
func (f *CreatorFilter) Matches(creator string) bool {
	if f == nil {
		return true
	}
	if creator == f.Creator {
		return true
	}
	return f.IncludeLegacy && creator == CreatorNone
}

// Parser extracts dashboard records from raw snapshot text.
type Parser struct {
	// BaseURL prefixes the dashboard id to build the record URL.
	BaseURL string

	// Logger receives skip diagnostics. Defaults to a discard logger.
	Logger *logging.Logger
}

// NewParser returns a parser with default base URL and a discard logger.
func NewParser() *Parser {
	return &Parser{
		BaseURL: DefaultBaseURL,
		Logger:  logging.Discard(),
	}
}

// Expected row shape in the snapshot text:
//
//	- row "armprod about 1 hour ago 11/3/2020 Alice" [ref=e201]:
//	  - rowheader "armprod" [ref=e202]:
//	    - link "armprod" [ref=e203] [cursor=pointer]:
//	      - /url: /dashboards/03e8f08f-8111-40f4-9f58-270678db9782
//	  - gridcell "about 1 hour ago" [ref=e204]
//	  - gridcell "11/3/2020" [ref=e205]
//	  - gridcell "Alice" [ref=e206]
var (
	rowRe    = regexp.MustCompile(`^\s*-\s*row\s+"([^"]*)"\s*\[ref=`)
	headerRe = regexp.MustCompile(`rowheader\s+"([^"]+)"`)
	urlRe    = regexp.MustCompile(`/url:\s*/dashboards/([0-9a-fA-F-]+)`)
	cellRe   = regexp.MustCompile(`gridcell\s+"([^"]+)"`)
	dateRe   = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
)

// Cells whose text contains one of these belong to the actions column
// (favorite toggle, edit button, options menu), not the data columns.
var actionCellMarkers = []string{"favorites", "Edit", "options"}

// Column order of the data cells after the row header.
const (
	cellLastAccessed = 0
	cellCreatedDate  = 1
	cellCreator      = 2
)

// Parse scans snapshot text for dashboard rows and returns the well-formed
// ones in source order. Rows missing a name or a valid dashboard id are
// logged and dropped, never an error; malformed or empty input yields an
// empty slice.
func (p *Parser) Parse(text string, filter *CreatorFilter) []DashboardRecord {
	lines := strings.Split(text, "\n")
	records := make([]DashboardRecord, 0)

	for i := 0; i < len(lines); i++ {
		m := rowRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		rowText := m[1]

		rec, span := p.parseRow(rowText, lines, i)
		if span > 0 {
			i += span - 1
		}
		if rec == nil {
			continue
		}
		if !filter.Matches(rec.Creator) {
			p.Logger.Debugf("skipped %q (creator %q does not match filter)", rec.Name, rec.Creator)
			continue
		}
		records = append(records, *rec)
	}

	return records
}

// parseRow scans the block following a row line. It returns the parsed
// record (nil when the row is malformed) and the number of lines consumed
// including the row line itself.
//
// The scan must not stop when the dashboard URL is found: the rowheader can
// appear after the link line and the creator cell always comes later in the
// block. It ends only at the next row line, at the end of input, or once
// every field has been captured.
func (p *Parser) parseRow(rowText string, lines []string, start int) (*DashboardRecord, int) {
	var (
		name  string
		id    string
		cells []string
	)

	end := start + 1
	for ; end < len(lines); end++ {
		line := lines[end]
		if rowRe.MatchString(line) {
			break
		}

		if name == "" {
			if hm := headerRe.FindStringSubmatch(line); hm != nil {
				name = hm[1]
			}
		}
		if id == "" {
			if um := urlRe.FindStringSubmatch(line); um != nil {
				id = um[1]
			}
		}
		if cm := cellRe.FindStringSubmatch(line); cm != nil {
			if !isActionCell(cm[1]) {
				cells = append(cells, cm[1])
			}
		}

		if name != "" && id != "" && len(cells) > cellCreator {
			end++
			break
		}
	}
	span := end - start

	if name == "" || id == "" {
		p.Logger.Warnf("skipped row %q: missing %s", truncate(rowText, 80), missingFields(name, id))
		return nil, span
	}
	if _, err := uuid.Parse(id); err != nil {
		p.Logger.Warnf("skipped row %q: invalid dashboard id %q", truncate(rowText, 80), id)
		return nil, span
	}

	rec := &DashboardRecord{
		Name:    name,
		URL:     p.BaseURL + "/" + id,
		ID:      id,
		Creator: CreatorNone,
	}

	if len(cells) > cellCreator {
		rec.LastModified = cells[cellLastAccessed]
		if c := strings.TrimSpace(cells[cellCreator]); c != "" {
			rec.Creator = c
		}
	} else {
		// Older list layouts fold everything into the row text:
		// "{name} {relative time} {M/D/YYYY} {creator}". The creator is
		// whatever follows the date token.
		date, creator := splitRowText(rowText)
		rec.LastModified = date
		if creator != "" {
			rec.Creator = creator
		}
	}

	p.Logger.Debugf("parsed dashboard %q id=%s creator=%q", rec.Name, rec.ID, rec.Creator)
	return rec, span
}

// splitRowText pulls the date token and trailing creator text out of a row
// header string.
func splitRowText(rowText string) (date, creator string) {
	parts := strings.Fields(rowText)
	for i, part := range parts {
		if dateRe.MatchString(part) {
			return part, strings.Join(parts[i+1:], " ")
		}
	}
	return "", ""
}

func isActionCell(text string) bool {
	for _, marker := range actionCellMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func missingFields(name, id string) string {
	switch {
	case name == "" && id == "":
		return "name and url"
	case name == "":
		return "name"
	default:
		return "url"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
