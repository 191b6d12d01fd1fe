package rabbit

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPending(t *testing.T) (*pendingConfirms, chan amqp.Confirmation, chan struct{}) {
	t.Helper()
	p := newPendingConfirms()
	confirms := make(chan amqp.Confirmation)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.run(confirms)
	}()
	return p, confirms, done
}

func deliverConfirm(t *testing.T, confirms chan<- amqp.Confirmation, c amqp.Confirmation) {
	t.Helper()
	select {
	case confirms <- c:
	case <-time.After(time.Second):
		t.Fatalf("confirmation %d was not drained", c.DeliveryTag)
	}
}

func TestPendingConfirmsDrainsAbandonedTags(t *testing.T) {
	p, confirms, done := startPending(t)

	for want := uint64(1); want <= 2; want++ {
		tag, _ := p.expect()
		require.Equal(t, want, tag)
		p.published(tag)
		p.forget(tag)
	}

	tag, wait := p.expect()
	require.Equal(t, uint64(3), tag)
	p.published(tag)

	// late confirmations for the abandoned publishes must not block the reader
	deliverConfirm(t, confirms, amqp.Confirmation{DeliveryTag: 1, Ack: true})
	deliverConfirm(t, confirms, amqp.Confirmation{DeliveryTag: 2, Ack: true})
	deliverConfirm(t, confirms, amqp.Confirmation{DeliveryTag: 3, Ack: false})

	select {
	case c, ok := <-wait:
		require.True(t, ok)
		assert.Equal(t, uint64(3), c.DeliveryTag)
		assert.False(t, c.Ack)
	case <-time.After(time.Second):
		t.Fatal("confirmation not routed to its waiter")
	}
	assert.Equal(t, 0, p.waiting())

	close(confirms)
	<-done
}

func TestPendingConfirmsCloseReleasesWaiters(t *testing.T) {
	p, confirms, done := startPending(t)

	tag, wait := p.expect()
	p.published(tag)

	close(confirms)
	<-done

	_, ok := <-wait
	assert.False(t, ok)

	_, late := p.expect()
	_, ok = <-late
	assert.False(t, ok)
	assert.Equal(t, 0, p.waiting())
}

func TestPendingConfirmsFailedPublishReusesTag(t *testing.T) {
	p := newPendingConfirms()

	tag, _ := p.expect()
	p.forget(tag)

	again, _ := p.expect()
	assert.Equal(t, tag, again)
}
