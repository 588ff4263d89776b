package service_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/librov/internal/queue"
	"github.com/iliyamo/librov/internal/service/servicetest"
)

// A broker that accepts connections but never speaks AMQP must not hold a
// committed checkout past the publish timeout.
func TestCheckoutNotHeldBySilentBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	held := make(chan net.Conn, 8)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held <- c
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		for {
			select {
			case c := <-held:
				_ = c.Close()
			default:
				return
			}
		}
	})

	store := servicetest.New()
	u := store.AddUser("ada", false)
	b := store.AddBook("Dune", 1)
	events := queue.NewPublisher("amqp://guest:guest@"+ln.Addr().String()+"/", discard)

	start := time.Now()
	tx, err := newCheckout(store, events).Checkout(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, uint32(0), store.Book(b.ID).AvailableCopies)
}
