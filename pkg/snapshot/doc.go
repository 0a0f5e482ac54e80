// Package snapshot parses Playwright accessibility snapshots of the Azure
// Data Explorer dashboards list.
//
// The snapshot text looks YAML-ish but is not valid YAML: it is the custom
// indented format emitted by @playwright/mcp's browser_snapshot tool, so it
// is handled with dedicated line-oriented scanning rather than a structured
// parser. The grammar is not versioned upstream; the frozen fixtures in
// parser_test.go are the compatibility contract.
//
// The package also resolves ephemeral element refs ([ref=eNN] handles) from
// snapshot text. A ref is only valid until the next page-state-changing
// action, so callers must re-resolve from a fresh snapshot immediately
// before each interaction and never store refs across actions.
package snapshot
