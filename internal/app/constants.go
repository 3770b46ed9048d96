package app

// DefaultActionLogLimit is the page size used when a caller does not ask for one.
const DefaultActionLogLimit = 100

// MaxActionLogLimit caps a single action log page.
const MaxActionLogLimit = 500

// MaxSessionIDLength keeps caller-chosen session ids usable as storage keys.
const MaxSessionIDLength = 64
