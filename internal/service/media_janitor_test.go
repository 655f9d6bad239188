package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRemover struct {
	mu      sync.Mutex
	removed []string
	fail    map[string]bool
}

func (r *recordingRemover) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[name] {
		return errors.New("boom")
	}
	r.removed = append(r.removed, name)
	return nil
}

func TestMediaJanitorDrainsOnStop(t *testing.T) {
	rm := &recordingRemover{fail: map[string]bool{"bad.png": true}}
	j := NewMediaJanitor(rm, 8)

	j.EnqueueRemove("a.png")
	j.EnqueueRemove("bad.png")
	j.EnqueueRemove("b.png")
	j.EnqueueRemove("")
	assert.Equal(t, 3, j.QueueLen())

	stop := j.Start(2)
	require.NoError(t, stop(context.Background()))
	assert.Zero(t, j.QueueLen())
	assert.ElementsMatch(t, []string{"a.png", "b.png"}, rm.removed)

	// 失败的删除也计入落地延迟
	var samples int
	for {
		select {
		case d := <-j.Metrics():
			assert.GreaterOrEqual(t, d, time.Duration(0))
			samples++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 3, samples)
}

func TestMediaJanitorQueueFull(t *testing.T) {
	rm := &recordingRemover{}
	j := NewMediaJanitor(rm, 1)
	j.EnqueueRemove("a.png")
	j.EnqueueRemove("b.png")
	assert.Equal(t, 1, j.QueueLen())

	var nilJanitor *MediaJanitor
	nilJanitor.EnqueueRemove("c.png")
}
