// Package permission holds the role permission matrix: the module × kind grid
// of booleans an operator edits, and its conversions to and from the wire
// records exchanged with the backend.
package permission
