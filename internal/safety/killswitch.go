package safety

import (
	"sync"
	"sync/atomic"
	"time"
)

// KillSwitch is the shared halt flag checked at every cycle stage boundary.
// Activation is atomic and immediately visible; bound interrupt hooks run
// synchronously inside Activate so an in-flight cycle's processing flag is
// already false when Activate returns.
type KillSwitch struct {
	engaged atomic.Bool

	mu        sync.Mutex
	changedAt time.Time
	hooks     []func()
}

// NewKillSwitch returns a disengaged switch.
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Bind registers a hook run synchronously on every activation. The cycle
// coordinator binds its interrupt here.
func (k *KillSwitch) Bind(hook func()) {
	if hook == nil {
		return
	}
	k.mu.Lock()
	k.hooks = append(k.hooks, hook)
	k.mu.Unlock()
}

// Activate engages the switch. The flag write happens before the hooks so a
// hook that re-checks the switch observes it engaged.
func (k *KillSwitch) Activate() {
	k.engaged.Store(true)
	k.mu.Lock()
	k.changedAt = time.Now().UTC()
	hooks := make([]func(), len(k.hooks))
	copy(hooks, k.hooks)
	k.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// Deactivate clears the flag. A cycle aborted while the switch was engaged
// is never resumed; the coordinator starts fresh cycles only.
func (k *KillSwitch) Deactivate() {
	k.engaged.Store(false)
	k.mu.Lock()
	k.changedAt = time.Now().UTC()
	k.mu.Unlock()
}

// Engaged reports the flag. Safe for concurrent use from any goroutine.
func (k *KillSwitch) Engaged() bool {
	return k.engaged.Load()
}

// ChangedAt returns when the flag last flipped.
func (k *KillSwitch) ChangedAt() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.changedAt
}
