// Package eventbus propagates lock lifecycle notifications. A Bus
// carries fire-and-forget signals: delivery is attempted only to
// subscribers that are currently waiting, and there is no replay, so a
// subscriber registered after an event misses it. The in-memory bus is
// the default; Redis, NATS and Kafka backends fan the same
// notifications out to observers on other nodes. Only notifications
// travel over a backend, never the lock token itself.
package eventbus
