package auction

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLockTableSerializesPerAuction(t *testing.T) {
	table := NewLockTable()
	auctionID := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := table.Lock(auctionID)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, table.Len(), "entries should be released once idle")
}

func TestLockTableIndependentAuctionsDoNotBlock(t *testing.T) {
	table := NewLockTable()

	releaseA := table.Lock(uuid.New())
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := table.Lock(uuid.New())
		releaseB()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, table.Len())
}
