// Package rows converts between tally's local document model and the flat,
// per-table rows stored by the remote backend.
//
// Every row carries the owning user's id. Struct fields are tagged twice:
// `db` names the remote column and `json` is the queue payload encoding.
// Local habit ids are translated to remote ids through an IDMap on the way
// out and back through its inverse on the way in.
//
// The transforms are pure; nothing here performs I/O.
package rows
