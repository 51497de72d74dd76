// Package storage persists compiled graphs and cooking sessions.
// It uses BadgerDB as the embedded database and stores values as JSON
// under "kind:id" keys.
package storage
