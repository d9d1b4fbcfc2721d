// Package linemark keeps line bookmarks valid while documents change.
//
// A bookmark captures a positional fingerprint of its line (surrounding
// context, occurrence index, relative position). When the document is
// edited, or when a filtered view of it is regenerated, the anchoring
// engine re-locates each bookmark from that fingerprint, trying exact text
// with occurrence disambiguation before a scored fuzzy fallback, and
// reports "not found" rather than guessing when confidence is
// insufficient.
//
// The canonical bookmark lives in the source document; mirrors of it live
// in derived views and are kept reciprocally linked by the sync
// coordinator. Edit notifications are debounced so bursts of keystrokes
// cost one re-anchor pass.
package linemark
