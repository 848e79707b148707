// Package task provides identity handles for logical tasks. Goroutines
// have no ambient identity in Go, so a handle is attached explicitly to
// a context.Context and travels with it into every lock operation.
package task
