// Package engine runs pipeline stages in order against the artifact store and
// persists a snapshot of every run, so status queries and output verification
// work across process restarts.
package engine
