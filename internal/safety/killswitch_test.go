package safety

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKillSwitch_ActivateIsImmediatelyVisible(t *testing.T) {
	k := NewKillSwitch()
	assert.False(t, k.Engaged())

	k.Activate()
	assert.True(t, k.Engaged())
	assert.False(t, k.ChangedAt().IsZero())

	k.Deactivate()
	assert.False(t, k.Engaged())
}

func TestKillSwitch_HooksRunSynchronously(t *testing.T) {
	k := NewKillSwitch()

	var sawEngaged bool
	k.Bind(func() {
		// The flag must already read true inside the hook.
		sawEngaged = k.Engaged()
	})

	k.Activate()
	assert.True(t, sawEngaged)
}

func TestKillSwitch_NoRaceWindowUnderConcurrency(t *testing.T) {
	// A stage-boundary check that starts after Activate returns must always
	// observe the flag. Run many activator/checker pairs to shake out races.
	for i := 0; i < 200; i++ {
		k := NewKillSwitch()
		var processing atomic.Bool
		processing.Store(true)
		k.Bind(func() { processing.Store(false) })

		activated := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			k.Activate()
			close(activated)
		}()
		go func() {
			defer wg.Done()
			<-activated
			if !k.Engaged() {
				t.Error("stage check after Activate observed a disengaged switch")
			}
			if processing.Load() {
				t.Error("processing flag still true after Activate returned")
			}
		}()
		wg.Wait()
	}
}
