package task

import (
	"context"

	"github.com/google/uuid"
)

// Handle identifies a logical task. Handles are comparable values; two
// calls made with the same Handle on their context are treated as the
// same task by ownership checks. The zero Handle carries no identity.
type Handle struct {
	id uuid.UUID
}

type ctxKey struct{}

// New mints a fresh Handle.
func New() Handle {
	return Handle{id: uuid.New()}
}

// IsZero reports whether h carries no identity.
func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

// String returns the handle's textual form for diagnostics.
func (h Handle) String() string {
	if h.IsZero() {
		return "task(none)"
	}
	return "task(" + h.id.String() + ")"
}

// With returns a context carrying h. Attaching the zero Handle is
// equivalent to attaching no handle at all.
func With(ctx context.Context, h Handle) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// WithNew returns a context carrying a freshly minted Handle, along
// with that Handle. Typically called once at the top of a goroutine
// that will contend for locks.
func WithNew(ctx context.Context) (context.Context, Handle) {
	h := New()
	return With(ctx, h), h
}

// From returns the Handle carried by ctx, or the zero Handle.
func From(ctx context.Context) Handle {
	h, _ := ctx.Value(ctxKey{}).(Handle)
	return h
}
