package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{ id string }

func (s *stubConn) ID() string              { return s.id }
func (s *stubConn) Send([]byte) error       { return nil }
func (s *stubConn) Close(int, string) error { return nil }

// assertConnectedInvariant checks Connected == (participant pool entry exists)
// for every registered identity.
func assertConnectedInvariant(t *testing.T, r *Registry) {
	t.Helper()
	for _, id := range r.Snapshot() {
		_, live := r.Participant(id.Key)
		assert.Equal(t, live, id.Connected, "identity %s", id.Key)
	}
}

func TestRegister_Lookup(t *testing.T) {
	r := New()
	id, err := r.Register("rAlice", "alice", "sSecret", 100)
	require.NoError(t, err)
	assert.False(t, id.Connected)

	got, ok := r.Lookup("rAlice")
	require.True(t, ok)
	assert.Equal(t, "alice", got.DisplayName)
	assert.Equal(t, "sSecret", got.Secret)
	assert.Equal(t, 100.0, got.Balance)
	assert.True(t, r.IsRegistered("rAlice"))
	assert.False(t, r.IsRegistered("rBob"))
}

func TestRegister_DuplicateRejected(t *testing.T) {
	r := New()
	_, err := r.Register("alice", "alice", "first-secret", 10)
	require.NoError(t, err)

	_, err = r.Register("alice", "alice-2", "second-secret", 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateIdentity))

	got, _ := r.Lookup("alice")
	assert.Equal(t, "alice", got.DisplayName)
	assert.Equal(t, "first-secret", got.Secret)
	assert.Equal(t, 10.0, got.Balance)
	assert.Len(t, r.Snapshot(), 1)
}

func TestRegister_EmptyKey(t *testing.T) {
	_, err := New().Register("", "nobody", "", 0)
	assert.Error(t, err)
}

func TestSetConnected_UnknownKeyIsNoop(t *testing.T) {
	r := New()
	r.SetConnected("ghost", true)
	assert.Empty(t, r.Snapshot())
}

func TestSnapshot_IsCopy(t *testing.T) {
	r := New()
	_, _ = r.Register("a", "alice", "s", 0)

	snap := r.Snapshot()
	snap[0].DisplayName = "mallory"
	snap[0].Connected = true

	got, _ := r.Lookup("a")
	assert.Equal(t, "alice", got.DisplayName)
	assert.False(t, got.Connected)
}

func TestSnapshot_RegistrationOrder(t *testing.T) {
	r := New()
	keys := []string{"k3", "k1", "k2"}
	for _, k := range keys {
		_, err := r.Register(k, k, "", 0)
		require.NoError(t, err)
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	for i, k := range keys {
		assert.Equal(t, k, snap[i].Key)
	}
}

func TestAttachParticipant(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *Registry)
		key     string
		wantErr error
	}{
		{
			name:  "registered key",
			setup: func(r *Registry) { _, _ = r.Register("a", "alice", "", 0) },
			key:   "a",
		},
		{
			name:    "unknown key",
			setup:   func(r *Registry) {},
			key:     "ghost",
			wantErr: ErrUnknownIdentity,
		},
		{
			name: "already connected",
			setup: func(r *Registry) {
				_, _ = r.Register("a", "alice", "", 0)
				_ = r.AttachParticipant("a", &stubConn{id: "first"})
			},
			key:     "a",
			wantErr: ErrAlreadyConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			tt.setup(r)
			err := r.AttachParticipant(tt.key, &stubConn{id: "second"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assertConnectedInvariant(t, r)
		})
	}
}

func TestAttachParticipant_UnknownLeavesPoolsEmpty(t *testing.T) {
	r := New()
	_, _ = r.Register("a", "alice", "", 0)

	err := r.AttachParticipant("ghost", &stubConn{id: "x"})
	require.ErrorIs(t, err, ErrUnknownIdentity)

	_, participants, _ := r.Counts()
	assert.Zero(t, participants)
	for _, id := range r.Snapshot() {
		assert.False(t, id.Connected)
	}
}

func TestDetachParticipant(t *testing.T) {
	r := New()
	_, _ = r.Register("a", "alice", "", 0)
	require.NoError(t, r.AttachParticipant("a", &stubConn{id: "c"}))

	assert.True(t, r.DetachParticipant("a"))
	assert.False(t, r.DetachParticipant("a"), "second detach must be a no-op")
	assert.False(t, r.DetachParticipant("ghost"))
	assertConnectedInvariant(t, r)
	assert.Empty(t, r.ConnectedParticipants())
}

func TestObservers_AddRemoveIdempotent(t *testing.T) {
	r := New()
	c := &stubConn{id: "obs"}
	r.AddObserver(c)
	assert.Len(t, r.Observers(), 1)

	assert.True(t, r.RemoveObserver(c))
	assert.False(t, r.RemoveObserver(c))
	assert.Empty(t, r.Observers())
}

func TestDrainAll(t *testing.T) {
	r := New()
	_, _ = r.Register("a", "alice", "", 0)
	require.NoError(t, r.AttachParticipant("a", &stubConn{id: "p"}))
	r.AddObserver(&stubConn{id: "o"})

	drained := r.DrainAll()
	assert.Len(t, drained, 2)

	n, participants, observers := r.Counts()
	assert.Equal(t, 1, n)
	assert.Zero(t, participants)
	assert.Zero(t, observers)
	assertConnectedInvariant(t, r)
}

func TestConcurrentAttachDetach(t *testing.T) {
	r := New()
	const n = 50
	for i := 0; i < n; i++ {
		_, err := r.Register(fmt.Sprintf("k%d", i), "user", "", 0)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		key := fmt.Sprintf("k%d", i)
		go func() {
			defer wg.Done()
			_ = r.AttachParticipant(key, &stubConn{id: key})
		}()
		go func() {
			defer wg.Done()
			r.Snapshot()
			r.Participants()
		}()
	}
	wg.Wait()

	assert.Len(t, r.ConnectedParticipants(), n)
	assertConnectedInvariant(t, r)

	for i := 0; i < n; i += 2 {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			r.DetachParticipant(key)
		}(fmt.Sprintf("k%d", i))
	}
	wg.Wait()

	assert.Len(t, r.ConnectedParticipants(), n/2)
	assertConnectedInvariant(t, r)
}
