package crash

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackedGoroutineRecoversAndDrains(t *testing.T) {
	var wg sync.WaitGroup
	var ran atomic.Int32

	TrackedGoroutine(&wg, "ok", func() { ran.Add(1) })
	TrackedGoroutine(&wg, "boom", func() {
		ran.Add(1)
		panic("scan exploded")
	})

	wg.Wait()
	assert.Equal(t, int32(2), ran.Load())
}
