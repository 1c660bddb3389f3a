// Package schema provides the data structures shared by the local store,
// the remote data service client, and the sync manager.
//
// Every locally-held record carries a sync status tag describing its
// relationship to the authoritative remote copy. Records are written
// optimistically by the UI-facing path as "pending" and promoted to
// "synced" by the sync manager once an upload is confirmed.
package schema
