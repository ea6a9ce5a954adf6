package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishFanOut(t *testing.T) {
	b := New()
	id1, ch1 := b.Subscribe(4)
	id2, ch2 := b.Subscribe(4)
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	b.PublishNew(TaskMoved, "task-1", map[string]string{"sprint_id": "s1"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, TaskMoved, ev.Type)
			assert.Equal(t, "task-1", ev.ResourceID)
			assert.Equal(t, "s1", ev.Metadata["sprint_id"])
			assert.NotEmpty(t, ev.ID)
		default:
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_FullBufferDrops(t *testing.T) {
	b := New()
	id, ch := b.Subscribe(1)
	defer b.Unsubscribe(id)

	b.PublishNew(TaskCreated, "a", nil)
	b.PublishNew(TaskCreated, "b", nil)

	ev := <-ch
	assert.Equal(t, "a", ev.ResourceID)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.ResourceID)
	default:
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	id, ch := b.Subscribe(1)
	b.Unsubscribe(id)

	_, ok := <-ch
	require.False(t, ok)

	// Publishing after unsubscribe must not panic.
	b.PublishNew(TaskDeleted, "x", nil)
	b.Unsubscribe(id)
}
