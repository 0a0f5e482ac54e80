package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refFixture = `- grid "Dashboards" [ref=e100]:
  - row "armprod about 1 hour ago 11/3/2020 Alice" [ref=e201]:
    - rowheader "armprod" [ref=e202]
    - gridcell [ref=e207]:
      - button "Additional options" [ref=e208]
  - row "batch account 2 days ago 5/12/2021 Bob" [ref=e301]:
    - rowheader "batch account" [ref=e302]
    - gridcell [ref=e307]:
      - button "Additional options" [ref=e308]
- menu [ref=e900]:
  - menuitem "Download" [ref=e901]
  - menuitem "Delete" [ref=e902]
`

func TestResolveRef_ScopedToMatchingRow(t *testing.T) {
	ref, err := ResolveRef(refFixture, "armprod", "Additional options")
	require.NoError(t, err)
	assert.Equal(t, ElementRef("e208"), ref)

	ref, err = ResolveRef(refFixture, "batch account", "Additional options")
	require.NoError(t, err)
	assert.Equal(t, ElementRef("e308"), ref)
}

func TestResolveRef_LabelMatchIsCaseInsensitive(t *testing.T) {
	ref, err := ResolveRef(refFixture, "armprod", "additional options")
	require.NoError(t, err)
	assert.Equal(t, ElementRef("e208"), ref)
}

func TestResolveRef_NoMatchingRow(t *testing.T) {
	_, err := ResolveRef(refFixture, "no-such-dashboard", "Additional options")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestResolveRef_ControlMissingFromRow(t *testing.T) {
	text := `- row "bare about 1 hour ago 1/1/2020 Alice" [ref=e1]:
  - rowheader "bare" [ref=e2]
`
	_, err := ResolveRef(text, "bare", "Additional options")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestResolveRef_RequiresContextAndLabel(t *testing.T) {
	_, err := ResolveRef(refFixture, "", "Additional options")
	assert.Error(t, err)

	_, err = ResolveRef(refFixture, "armprod", "")
	assert.Error(t, err)
}

func TestFindRef(t *testing.T) {
	ref, err := FindRef(refFixture, "Download")
	require.NoError(t, err)
	assert.Equal(t, ElementRef("e901"), ref)

	_, err = FindRef(refFixture, "Upload")
	assert.ErrorIs(t, err, ErrRefNotFound)

	_, err = FindRef(refFixture, "")
	assert.Error(t, err)
}
