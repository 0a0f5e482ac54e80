package pipeline

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// IDMismatchError reports a downloaded definition whose embedded id does
// not match the dashboard row it was downloaded for. This usually means
// the wrong row's menu was clicked after the page re-rendered.
type IDMismatchError struct {
	Want string
	Got  string
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("dashboard id mismatch: expected %s, file contains %q", e.Want, e.Got)
}

// VerifyDashboardID checks that the definition's id field matches the id
// parsed from the dashboard list row.
func VerifyDashboardID(data []byte, wantID string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("downloaded file is not valid JSON")
	}
	got := gjson.GetBytes(data, "id").String()
	if got != wantID {
		return &IDMismatchError{Want: wantID, Got: got}
	}
	return nil
}

// DefinitionInfo is the summary extracted from a dashboard definition
// during validation.
type DefinitionInfo struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	TileCount int    `json:"tileCount"`
}

// ValidateDefinition checks that a dashboard definition is structurally
// importable: valid JSON with a non-empty name and a tiles array.
func ValidateDefinition(data []byte) (*DefinitionInfo, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("definition is not valid JSON")
	}

	name := gjson.GetBytes(data, "name")
	if !name.Exists() || name.String() == "" {
		return nil, fmt.Errorf("definition has no dashboard name")
	}

	tiles := gjson.GetBytes(data, "tiles")
	if !tiles.Exists() || !tiles.IsArray() {
		return nil, fmt.Errorf("definition has no tiles array")
	}

	return &DefinitionInfo{
		Name:      name.String(),
		ID:        gjson.GetBytes(data, "id").String(),
		TileCount: int(tiles.Get("#").Int()),
	}, nil
}
