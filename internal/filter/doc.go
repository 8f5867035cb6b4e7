// Package filter implements the downstream consumer of the collections
// saga: it watches collection-updates, records each update against the
// item it belongs to, and simulates a business-rule failure whenever it
// sees the sentinel tag "error", publishing a compensation event back to
// the collections service instead of accepting the update.
package filter
