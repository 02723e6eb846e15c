package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreatesIdleSessionLazily(t *testing.T) {
	st := NewStore()
	assert.False(t, st.Known(7))
	assert.Equal(t, StateIdle, st.GetState(7))
	assert.False(t, st.Known(7), "reads must not create sessions")

	require.NoError(t, st.Update(7, func(s *Session) error {
		s.State = StateAwaitingAmount
		return nil
	}))
	assert.True(t, st.Known(7))
	assert.True(t, st.InProgress(7))
	assert.Equal(t, 1, st.Len())
}

func TestStoreRejectsInvariantViolations(t *testing.T) {
	st := NewStore()
	err := st.Update(1, func(s *Session) error {
		s.State = StateAwaitingEmail
		s.PendingAmount = 1500
		return nil
	})
	require.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, StateIdle, st.GetState(1), "invalid mutation must not be committed")
}

func TestStoreDiscardsMutationOnError(t *testing.T) {
	st := NewStore()
	boom := errors.New("boom")
	err := st.Update(1, func(s *Session) error {
		s.State = StateAwaitingAmount
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, st.GetState(1))
}

func TestStoreResetKeepsIdentity(t *testing.T) {
	st := NewStore()
	require.NoError(t, st.Update(3, func(s *Session) error {
		s.State = StateAwaitingProof
		s.PendingAmount = 2000
		return nil
	}))

	st.Reset(3)
	st.Reset(3)

	assert.Equal(t, Session{State: StateIdle}, st.Get(3))
	assert.True(t, st.Known(3))
}

func TestStoreSerialisesPerUser(t *testing.T) {
	st := NewStore()
	require.NoError(t, st.Update(9, func(s *Session) error {
		s.State = StateAwaitingProof
		s.PendingAmount = 1000
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Update(9, func(s *Session) error {
				s.PendingAmount++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1100, st.Get(9).PendingAmount)
}

func TestValidate(t *testing.T) {
	proof := Proof{Ref: "P1", FileID: "f1"}
	cases := []struct {
		name  string
		s     Session
		valid bool
	}{
		{"idle clean", Session{State: StateIdle}, true},
		{"idle with amount", Session{State: StateIdle, PendingAmount: 1}, false},
		{"awaiting amount", Session{State: StateAwaitingAmount}, true},
		{"awaiting proof", Session{State: StateAwaitingProof, PendingAmount: 1000}, true},
		{"awaiting proof without amount", Session{State: StateAwaitingProof}, false},
		{"awaiting email", Session{State: StateAwaitingEmail, PendingAmount: 1000, PendingProof: proof}, true},
		{"awaiting email without proof", Session{State: StateAwaitingEmail, PendingAmount: 1000}, false},
		{"unknown state", Session{State: "bogus"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvariant)
			}
		})
	}
}
