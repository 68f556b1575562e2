// Package database provides the SQLite backend for giffer's tag index.
//
// A Database implements tagstore.Persister. Files are stored one row each
// with their position in the index, and tags in a child table ordered within
// each file, so a Load returns exactly the order that was saved. Every Save
// rewrites the index inside one transaction.
//
// The database runs in WAL mode with a busy timeout and is selected with
// store_backend = sqlite.
package database
