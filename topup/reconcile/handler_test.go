package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/topupbot/topup/ledger"
	"github.com/m3rciful/topupbot/topup/notify"
	"github.com/m3rciful/topupbot/topup/notify/mocks"
	"github.com/m3rciful/topupbot/topup/notify/notifytest"
)

type kindIs notify.Kind

func (k kindIs) Matches(x interface{}) bool {
	p, ok := x.(notify.Prompt)
	return ok && p.Kind == notify.Kind(k)
}

func (k kindIs) String() string { return "prompt of kind " + string(k) }

type fixture struct {
	idx    *MemoryIndex
	bridge *ledger.MemoryBridge
	rec    *notifytest.Recorder
	h      *Handler
}

func newFixture(seed map[string]int64) *fixture {
	f := &fixture{
		idx:    NewMemoryIndex(),
		bridge: ledger.NewMemoryBridge(seed),
		rec:    notifytest.New(),
	}
	f.h = NewHandler(f.idx, f.bridge, f.rec, nil)
	return f
}

func (f *fixture) submit(t *testing.T, userID int64, email string, amount int64, msgID int) (PendingRequest, MessageRef) {
	t.Helper()
	ctx := context.Background()
	req, err := f.idx.Create(ctx, newRequest(userID, email, amount))
	require.NoError(t, err)
	ref := MessageRef{ChatID: -100, MessageID: msgID}
	require.NoError(t, f.idx.Bind(ctx, req.ID, ref))
	return req, ref
}

func operatorKinds(rec *notifytest.Recorder) []notify.Kind {
	var kinds []notify.Kind
	for _, s := range rec.Operator() {
		kinds = append(kinds, s.Prompt.Kind)
	}
	return kinds
}

func TestAcceptCreditsAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 500})
	_, ref := f.submit(t, 42, "u@x.io", 1500, 1)

	res := f.h.Resolve(ctx, ref, DecisionAccept, "@alice")
	assert.Equal(t, OutcomeCredited, res.Outcome)
	assert.EqualValues(t, 2000, res.Balance)

	acc, err := f.bridge.GetAccount(ctx, "u@x.io")
	require.NoError(t, err)
	assert.EqualValues(t, 2000, acc.Balance)

	ops := f.rec.Operator()
	require.Len(t, ops, 1)
	assert.Equal(t, notify.KindAuditAccepted, ops[0].Prompt.Kind)
	assert.Equal(t, "@alice", ops[0].Prompt.Operator)
	assert.EqualValues(t, 1500, ops[0].Prompt.Amount)
	assert.Equal(t, "u@x.io", ops[0].Prompt.Email)

	user := f.rec.User(42)
	require.Len(t, user, 1)
	assert.Equal(t, notify.KindCredited, user[0].Kind)
	assert.EqualValues(t, 2000, user[0].Balance)
}

func TestRejectOffersRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 500})
	req, ref := f.submit(t, 42, "u@x.io", 1500, 1)

	res := f.h.Resolve(ctx, ref, DecisionReject, "@bob")
	assert.Equal(t, OutcomeRejected, res.Outcome)

	acc, _ := f.bridge.GetAccount(ctx, "u@x.io")
	assert.EqualValues(t, 500, acc.Balance, "reject never touches the ledger")

	assert.Equal(t, []notify.Kind{notify.KindAuditRejected}, operatorKinds(f.rec))
	user := f.rec.User(42)
	require.Len(t, user, 1)
	assert.Equal(t, notify.KindRejected, user[0].Kind)
	assert.Equal(t, req.ID, user[0].RequestID)

	stored, err := f.idx.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status)
}

func TestSecondDecisionIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 0})
	_, ref := f.submit(t, 42, "u@x.io", 1000, 1)

	require.Equal(t, OutcomeCredited, f.h.Resolve(ctx, ref, DecisionAccept, "@a").Outcome)
	assert.Equal(t, OutcomeNotFound, f.h.Resolve(ctx, ref, DecisionAccept, "@a").Outcome)
	assert.Equal(t, OutcomeNotFound, f.h.Resolve(ctx, ref, DecisionReject, "@b").Outcome)

	acc, _ := f.bridge.GetAccount(ctx, "u@x.io")
	assert.EqualValues(t, 1000, acc.Balance)
	assert.Len(t, f.rec.User(42), 1)
}

func TestUnboundMessageIsNotFound(t *testing.T) {
	f := newFixture(nil)
	res := f.h.Resolve(context.Background(), MessageRef{ChatID: -100, MessageID: 999}, DecisionAccept, "@a")
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, []notify.Kind{notify.KindAlreadyResolved}, operatorKinds(f.rec))
}

func TestConcurrentDecisionsApplyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 0})
	_, ref := f.submit(t, 42, "u@x.io", 1000, 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := DecisionAccept
			if i%2 == 1 {
				d = DecisionReject
			}
			res := f.h.Resolve(ctx, ref, d, fmt.Sprintf("@op%d", i))
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 19, outcomes[OutcomeNotFound])
	assert.Equal(t, 1, outcomes[OutcomeCredited]+outcomes[OutcomeRejected])
	acc, _ := f.bridge.GetAccount(ctx, "u@x.io")
	if outcomes[OutcomeCredited] == 1 {
		assert.EqualValues(t, 1000, acc.Balance)
	} else {
		assert.EqualValues(t, 0, acc.Balance)
	}
}

func TestAccountNotFoundNotifiesOperatorOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{})
	_, ref := f.submit(t, 42, "ghost@x.io", 1000, 1)

	res := f.h.Resolve(ctx, ref, DecisionAccept, "@a")
	assert.Equal(t, OutcomeAccountNotFound, res.Outcome)
	assert.Equal(t, []notify.Kind{notify.KindAccountNotFound}, operatorKinds(f.rec))
	assert.Empty(t, f.rec.User(42))

	assert.Equal(t, OutcomeNotFound, f.h.Resolve(ctx, ref, DecisionAccept, "@a").Outcome,
		"the request stays consumed")
}

type flakyBridge struct {
	ledger.Bridge
	getErr    error
	creditErr error
	credits   int
}

func (b *flakyBridge) GetAccount(ctx context.Context, email string) (ledger.Account, error) {
	if b.getErr != nil {
		return ledger.Account{}, b.getErr
	}
	return b.Bridge.GetAccount(ctx, email)
}

func (b *flakyBridge) ApplyCredit(ctx context.Context, email string, delta int64) (ledger.Account, error) {
	b.credits++
	if b.creditErr != nil {
		return ledger.Account{}, b.creditErr
	}
	return b.Bridge.ApplyCredit(ctx, email, delta)
}

func TestLedgerReadFailureReopens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 100})
	bridge := &flakyBridge{Bridge: f.bridge, getErr: errors.New("connection refused")}
	f.h = NewHandler(f.idx, bridge, f.rec, nil)
	_, ref := f.submit(t, 42, "u@x.io", 1000, 1)

	res := f.h.Resolve(ctx, ref, DecisionAccept, "@a")
	assert.Equal(t, OutcomeLedgerUnavailable, res.Outcome)
	last, ok := f.rec.LastOperator()
	require.True(t, ok)
	assert.Equal(t, notify.KindLedgerFailed, last.Prompt.Kind)
	assert.True(t, last.Prompt.Retryable)
	assert.Zero(t, bridge.credits)

	bridge.getErr = nil
	res = f.h.Resolve(ctx, ref, DecisionAccept, "@a")
	assert.Equal(t, OutcomeCredited, res.Outcome)
	assert.EqualValues(t, 1100, res.Balance)
}

func TestCreditFailureStaysConsumed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 100})
	bridge := &flakyBridge{Bridge: f.bridge, creditErr: errors.New("timeout")}
	f.h = NewHandler(f.idx, bridge, f.rec, nil)
	_, ref := f.submit(t, 42, "u@x.io", 1000, 1)

	res := f.h.Resolve(ctx, ref, DecisionAccept, "@a")
	assert.Equal(t, OutcomeLedgerUnavailable, res.Outcome)
	last, _ := f.rec.LastOperator()
	assert.False(t, last.Prompt.Retryable)
	assert.Empty(t, f.rec.User(42))

	bridge.creditErr = nil
	assert.Equal(t, OutcomeNotFound, f.h.Resolve(ctx, ref, DecisionAccept, "@a").Outcome)
	assert.Equal(t, 1, bridge.credits, "no second credit attempt")
}

func TestUnknownUserKeepsCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 0})
	_, ref := f.submit(t, 0, "u@x.io", 1000, 1)

	res := f.h.Resolve(ctx, ref, DecisionAccept, "@a")
	assert.Equal(t, OutcomeCredited, res.Outcome)
	assert.Equal(t, []notify.Kind{notify.KindAuditAccepted, notify.KindUserUnknown}, operatorKinds(f.rec))

	acc, _ := f.bridge.GetAccount(ctx, "u@x.io")
	assert.EqualValues(t, 1000, acc.Balance)
}

func TestUnreachableUserIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(map[string]int64{"u@x.io": 0})
	f.rec.FailUser(42, fmt.Errorf("send: %w", notify.ErrRecipientUnreachable))
	_, ref := f.submit(t, 42, "u@x.io", 1000, 1)

	res := f.h.Resolve(ctx, ref, DecisionReject, "@a")
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, []notify.Kind{notify.KindAuditRejected, notify.KindUserUnreachable}, operatorKinds(f.rec))
}

func TestNotifyOrderWithMock(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)

	idx := NewMemoryIndex()
	bridge := ledger.NewMemoryBridge(map[string]int64{"u@x.io": 500})
	h := NewHandler(idx, bridge, n, nil)

	req, err := idx.Create(ctx, newRequest(42, "u@x.io", 1500))
	require.NoError(t, err)
	ref := MessageRef{ChatID: -100, MessageID: 5}
	require.NoError(t, idx.Bind(ctx, req.ID, ref))

	gomock.InOrder(
		n.EXPECT().NotifyOperator(gomock.Any(), kindIs(notify.KindAuditAccepted)).Return(notify.MessageRef{ChatID: -100, MessageID: 6}, nil),
		n.EXPECT().NotifyUser(gomock.Any(), int64(42), kindIs(notify.KindCredited)).Return(nil),
	)

	res := h.Resolve(ctx, ref, DecisionAccept, "@alice")
	assert.Equal(t, OutcomeCredited, res.Outcome)
}

func TestOperatorNotifyFailureDoesNotUndoCredit(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)

	idx := NewMemoryIndex()
	bridge := ledger.NewMemoryBridge(map[string]int64{"u@x.io": 0})
	h := NewHandler(idx, bridge, n, nil)
	req, _ := idx.Create(ctx, newRequest(42, "u@x.io", 1000))
	ref := MessageRef{ChatID: -100, MessageID: 1}
	require.NoError(t, idx.Bind(ctx, req.ID, ref))

	n.EXPECT().NotifyOperator(gomock.Any(), gomock.Any()).Return(notify.MessageRef{}, errors.New("telegram down")).AnyTimes()
	n.EXPECT().NotifyUser(gomock.Any(), int64(42), gomock.Any()).Return(errors.New("telegram down"))

	res := h.Resolve(ctx, ref, DecisionAccept, "@a")
	assert.Equal(t, OutcomeCredited, res.Outcome)
	acc, _ := bridge.GetAccount(ctx, "u@x.io")
	assert.EqualValues(t, 1000, acc.Balance)
}

// racyBridge credits with a non-atomic read-modify-write.
type racyBridge struct {
	mu       sync.Mutex
	balances map[string]int64
}

func (b *racyBridge) GetAccount(_ context.Context, email string) (ledger.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ledger.Account{Email: email, Balance: b.balances[email]}, nil
}

func (b *racyBridge) ApplyCredit(ctx context.Context, email string, delta int64) (ledger.Account, error) {
	acc, _ := b.GetAccount(ctx, email)
	time.Sleep(time.Millisecond)
	b.mu.Lock()
	b.balances[email] = acc.Balance + delta
	b.mu.Unlock()
	return ledger.Account{Email: email, Balance: acc.Balance + delta}, nil
}

func TestConcurrentCreditsSameEmailAreSerialised(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	bridge := &racyBridge{balances: map[string]int64{"u@x.io": 0}}
	h := NewHandler(idx, bridge, notifytest.New(), nil)

	const n = 10
	refs := make([]MessageRef, n)
	for i := 0; i < n; i++ {
		req, err := idx.Create(ctx, newRequest(42, "u@x.io", 1000))
		require.NoError(t, err)
		refs[i] = MessageRef{ChatID: -100, MessageID: i + 1}
		require.NoError(t, idx.Bind(ctx, req.ID, refs[i]))
	}

	var wg sync.WaitGroup
	for _, ref := range refs {
		wg.Add(1)
		go func(ref MessageRef) {
			defer wg.Done()
			h.Resolve(ctx, ref, DecisionAccept, "@a")
		}(ref)
	}
	wg.Wait()

	acc, _ := bridge.GetAccount(ctx, "u@x.io")
	assert.EqualValues(t, n*1000, acc.Balance)
}
