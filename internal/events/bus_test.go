package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[DocumentChanged](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), DocumentChanged{
		WebsiteID:  "site-1",
		Collection: "pages",
		Revision:   4,
	}))

	select {
	case got := <-ch:
		require.Equal(t, "pages", got.Collection)
		require.Equal(t, uint64(4), got.Revision)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[JobEvent](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), JobStarted{JobID: "j1", WebsiteID: "site-1"}))
	require.NoError(t, b.Publish(context.Background(), JobFailed{JobID: "j1", Step: "write"}))

	select {
	case got := <-ch:
		require.Equal(t, "j1", got.PublishJobID())
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for started event")
	}

	select {
	case got := <-ch:
		failed, ok := got.(JobFailed)
		require.True(t, ok)
		require.Equal(t, "write", failed.Step)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for failed event")
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[DocumentChanged](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, DocumentChanged{WebsiteID: "site-1"})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryRuntime, classified.Category())
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[DocumentChanged](b, 1)
	b.Close()

	// Channel must be closed on bus close.
	_, ok := <-ch
	require.False(t, ok)

	err := b.Publish(context.Background(), DocumentChanged{})
	require.Error(t, err)
}
