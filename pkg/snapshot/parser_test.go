package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listFixture is a frozen sample of the @playwright/mcp snapshot grammar for
// the dashboards list page. The upstream format is neither versioned nor
// guaranteed stable; these fixtures define what the parser supports.
const listFixture = `- generic [ref=e1]:
  - grid "Dashboards" [ref=e100]:
    - row "Name Last accessed Created Created by" [ref=e101]:
      - columnheader "Name" [ref=e102]
      - columnheader "Last accessed" [ref=e103]
    - row "armprod about 1 hour ago 11/3/2020 Alice" [ref=e201]:
      - rowheader "armprod" [ref=e202]:
        - link "armprod" [ref=e203] [cursor=pointer]:
          - /url: /dashboards/03e8f08f-8111-40f4-9f58-270678db9782
      - gridcell "about 1 hour ago" [ref=e204]
      - gridcell "11/3/2020" [ref=e205]
      - gridcell "Alice" [ref=e206]
      - gridcell "Add to favorites Edit options" [ref=e207]:
        - button "Additional options" [ref=e208]
    - row "batch account 2 days ago 5/12/2021 Bob" [ref=e301]:
      - rowheader "batch account" [ref=e302]:
        - link "batch account" [ref=e303] [cursor=pointer]:
          - /url: /dashboards/7c9e6679-7425-40de-944b-e07fc1f90ae7
      - gridcell "2 days ago" [ref=e304]
      - gridcell "5/12/2021" [ref=e305]
      - gridcell "Bob" [ref=e306]
    - row "legacy-dash 3 years ago 1/2/2019 --" [ref=e401]:
      - rowheader "legacy-dash" [ref=e402]:
        - link "legacy-dash" [ref=e403] [cursor=pointer]:
          - /url: /dashboards/550e8400-e29b-41d4-a716-446655440000
      - gridcell "3 years ago" [ref=e404]
      - gridcell "1/2/2019" [ref=e405]
      - gridcell "--" [ref=e406]
`

func TestParse_WellFormedRows(t *testing.T) {
	p := NewParser()
	records := p.Parse(listFixture, nil)

	require.Len(t, records, 3)

	assert.Equal(t, "armprod", records[0].Name)
	assert.Equal(t, "03e8f08f-8111-40f4-9f58-270678db9782", records[0].ID)
	assert.Equal(t, "https://dataexplorer.azure.com/dashboards/03e8f08f-8111-40f4-9f58-270678db9782", records[0].URL)
	assert.Equal(t, "Alice", records[0].Creator)
	assert.Equal(t, "about 1 hour ago", records[0].LastModified)

	assert.Equal(t, "batch account", records[1].Name)
	assert.Equal(t, "Bob", records[1].Creator)

	assert.Equal(t, "legacy-dash", records[2].Name)
	assert.Equal(t, CreatorNone, records[2].Creator)
}

func TestParse_PreservesSourceOrder(t *testing.T) {
	p := NewParser()
	records := p.Parse(listFixture, nil)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"armprod", "batch account", "legacy-dash"},
		[]string{records[0].Name, records[1].Name, records[2].Name})
}

// The URL line can precede the rowheader line. The scan must keep going
// after finding the URL until the name and creator cells are captured too;
// stopping at the URL yields records with an empty name.
func TestParse_URLBeforeRowHeader(t *testing.T) {
	text := `- row "ordered-late about 2 hours ago 7/1/2022 Carol" [ref=e501]:
  - link "ordered-late" [ref=e502]:
    - /url: /dashboards/6ba7b810-9dad-11d1-80b4-00c04fd430c8
  - rowheader "ordered-late" [ref=e503]
  - gridcell "about 2 hours ago" [ref=e504]
  - gridcell "7/1/2022" [ref=e505]
  - gridcell "Carol" [ref=e506]
`
	p := NewParser()
	records := p.Parse(text, nil)

	require.Len(t, records, 1)
	assert.Equal(t, "ordered-late", records[0].Name)
	assert.Equal(t, "Carol", records[0].Creator)
}

func TestParse_RowTextFallbackCreator(t *testing.T) {
	// No gridcells at all: creator comes from the row text after the date.
	text := `- row "compact-dash about 1 hour ago 11/3/2020 Dana Scully" [ref=e601]:
  - rowheader "compact-dash" [ref=e602]:
    - /url: /dashboards/03e8f08f-8111-40f4-9f58-270678db9782
`
	p := NewParser()
	records := p.Parse(text, nil)

	require.Len(t, records, 1)
	assert.Equal(t, "Dana Scully", records[0].Creator)
	assert.Equal(t, "11/3/2020", records[0].LastModified)
}

func TestParse_RowTextFallbackNoCreator(t *testing.T) {
	text := `- row "nameless-creator about 1 hour ago" [ref=e601]:
  - rowheader "nameless-creator" [ref=e602]:
    - /url: /dashboards/03e8f08f-8111-40f4-9f58-270678db9782
`
	p := NewParser()
	records := p.Parse(text, nil)

	require.Len(t, records, 1)
	assert.Equal(t, CreatorNone, records[0].Creator)
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "missing url",
			text: `- row "no-url about 1 hour ago 1/1/2020 Alice" [ref=e1]:
  - rowheader "no-url" [ref=e2]
  - gridcell "Alice" [ref=e3]
`,
		},
		{
			name: "missing rowheader",
			text: `- row "no-name about 1 hour ago 1/1/2020 Alice" [ref=e1]:
  - /url: /dashboards/03e8f08f-8111-40f4-9f58-270678db9782
`,
		},
		{
			name: "invalid dashboard id",
			text: `- row "bad-id about 1 hour ago 1/1/2020 Alice" [ref=e1]:
  - rowheader "bad-id" [ref=e2]:
    - /url: /dashboards/not-a-uuid-at-all
`,
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := p.Parse(tt.text, nil)
			assert.Empty(t, records)
		})
	}
}

func TestParse_MalformedRowDoesNotEatFollowingRow(t *testing.T) {
	text := `- row "broken about 1 hour ago 1/1/2020 Alice" [ref=e1]:
  - gridcell "Alice" [ref=e2]
- row "intact about 1 hour ago 1/1/2020 Alice" [ref=e3]:
  - rowheader "intact" [ref=e4]:
    - /url: /dashboards/03e8f08f-8111-40f4-9f58-270678db9782
  - gridcell "about 1 hour ago" [ref=e5]
  - gridcell "1/1/2020" [ref=e6]
  - gridcell "Alice" [ref=e7]
`
	p := NewParser()
	records := p.Parse(text, nil)

	require.Len(t, records, 1)
	assert.Equal(t, "intact", records[0].Name)
}

func TestParse_EmptyAndGarbageInput(t *testing.T) {
	p := NewParser()

	assert.Empty(t, p.Parse("", nil))
	assert.Empty(t, p.Parse("not a snapshot at all\njust text\n", nil))
	assert.Empty(t, p.Parse("{\"this\": \"is json, not a snapshot\"}", nil))
}

func TestParse_CreatorFilter(t *testing.T) {
	p := NewParser()

	t.Run("nil filter returns all", func(t *testing.T) {
		assert.Len(t, p.Parse(listFixture, nil), 3)
	})

	t.Run("filter includes sentinel by default", func(t *testing.T) {
		records := p.Parse(listFixture, NewCreatorFilter("Alice"))
		require.Len(t, records, 2)
		assert.Equal(t, "Alice", records[0].Creator)
		assert.Equal(t, CreatorNone, records[1].Creator)
	})

	t.Run("filter without legacy excludes sentinel", func(t *testing.T) {
		records := p.Parse(listFixture, &CreatorFilter{Creator: "Bob"})
		require.Len(t, records, 1)
		assert.Equal(t, "batch account", records[0].Name)
	})

	t.Run("matching is case-sensitive", func(t *testing.T) {
		records := p.Parse(listFixture, &CreatorFilter{Creator: "alice"})
		assert.Empty(t, records)
	})
}

func TestCreatorFilterMatches(t *testing.T) {
	var nilFilter *CreatorFilter
	assert.True(t, nilFilter.Matches("anyone"))

	f := NewCreatorFilter("Alice")
	assert.True(t, f.Matches("Alice"))
	assert.True(t, f.Matches(CreatorNone))
	assert.False(t, f.Matches("Bob"))
	assert.False(t, f.Matches("alice"))
}
