// Package lock implements an ownership-checked, timeout-capable
// mutual-exclusion lock. Unlike a bare semaphore, a Lock records which
// task currently holds it, rejects self-relocking and foreign releases
// as reported programmer errors, and supports a bounded wait during
// acquisition. Every successful acquire and release is broadcast
// through an eventbus Bus; misuse is routed to a pluggable Reporter
// and counted on a process-wide counter.
package lock
