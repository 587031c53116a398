package mutation

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/anonto42/nano-midea/client/internal/gateway"
)

// Phase is the state of one running mutation
type Phase int

const (
	Applying Phase = iota
	Committed
	RolledBack
)

func (p Phase) String() string {
	switch p {
	case Applying:
		return "applying"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// Mutation describes one write. Apply must return a new value without
// modifying its argument.
type Mutation[T any] struct {
	// Action names the write in user notices, e.g. "Like post"
	Action string
	// View receives the optimistic value; nil when there is nothing to show early
	View     *View[T]
	Apply    func(current T) T
	Dispatch func(ctx context.Context, prev, next T) (T, error)
	// Keys and Prefixes are invalidated once the backend accepted the write
	Keys     []string
	Prefixes []string
	// KeepPartial keeps the optimistic value when Dispatch fails with
	// gateway.ErrPartialFailure, since the first write already landed
	KeepPartial bool
}

// Run applies m optimistically, dispatches it and then either commits
// (replacing the optimistic value with the confirmed one and invalidating
// m's keys) or rolls back to the previous value and notifies the user.
func Run[T any](ctx context.Context, co *Coordinator, m Mutation[T]) (T, error) {
	var prev, next T
	var version uint64
	phase := Applying

	if m.View != nil {
		prev, _ = m.View.Get()
		next = prev
		if m.Apply != nil {
			next = m.Apply(prev)
		}
		version = m.View.Set(next)
	}
	glog.V(2).Infof("mutation: %s: %s", m.Action, phase)

	confirmed, err := m.Dispatch(ctx, prev, next)
	switch {
	case err == nil:
		phase = Committed
		if m.View != nil {
			m.View.CompareAndSet(version, confirmed)
		}
		co.invalidate(m.Keys, m.Prefixes)
	case m.KeepPartial && errors.Is(err, gateway.ErrPartialFailure):
		phase = Committed
		co.invalidate(m.Keys, m.Prefixes)
		co.notifier.Notify(incomplete(m.Action, err))
		confirmed = next
	default:
		phase = RolledBack
		if m.View != nil && !m.View.CompareAndSet(version, prev) {
			glog.V(1).Infof("mutation: %s: view changed since apply, keeping newer value", m.Action)
		}
		co.notifier.Notify(failed(m.Action, err))
		confirmed = prev
	}
	glog.V(1).Infof("mutation: %s: %s", m.Action, phase)
	return confirmed, err
}
