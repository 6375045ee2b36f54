package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier()
	a, cancelA := n.Subscribe(2)
	b, cancelB := n.Subscribe(2)
	defer cancelB()

	n.Publish(Notification{Kind: KindMessage, Text: "Message: hola"})
	assert.Equal(t, "Message: hola", (<-a).Text)
	assert.Equal(t, "Message: hola", (<-b).Text)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)

	n.Publish(Notification{Kind: KindError})
	assert.Equal(t, KindError, (<-b).Kind)
}

func TestNotifierDropsWhenFull(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe(1)

	n.Publish(Notification{Text: "first"})
	n.Publish(Notification{Text: "second"})
	assert.Len(t, ch, 1)
	assert.Equal(t, "first", (<-ch).Text)

	n.CloseAll()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}
