package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(time.Hour)

	s := m.Create()
	require.NotEmpty(t, s.ID)

	got := m.Get(s.ID)
	require.NotNil(t, got)
	require.Equal(t, s.ID, got.ID)

	require.Nil(t, m.Get("unknown"))
}

func TestGetRenewsExpiry(t *testing.T) {
	m := NewManager(time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s := m.Create()

	now = now.Add(50 * time.Minute)
	got := m.Get(s.ID)
	require.NotNil(t, got)
	require.Equal(t, now.Add(time.Hour), got.ExpiresAt)

	// Another 50 minutes is fine because the previous Get renewed.
	now = now.Add(50 * time.Minute)
	require.NotNil(t, m.Get(s.ID))

	now = now.Add(2 * time.Hour)
	require.Nil(t, m.Get(s.ID))
}

func TestDestroy(t *testing.T) {
	m := NewManager(time.Hour)
	s := m.Create()

	m.Destroy(s.ID)
	require.Nil(t, m.Get(s.ID))
	m.Destroy(s.ID)
}

func TestSweep(t *testing.T) {
	m := NewManager(time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Create()
	m.Create()
	now = now.Add(30 * time.Minute)
	kept := m.Create()

	now = now.Add(45 * time.Minute)
	require.Equal(t, 2, m.Sweep())
	require.Equal(t, 1, m.Len())
	require.NotNil(t, m.Get(kept.ID))
}

func TestNilSessionKey(t *testing.T) {
	var s *Session
	require.Equal(t, "", s.Key())
	require.Equal(t, "abc", (&Session{ID: "abc"}).Key())
}
