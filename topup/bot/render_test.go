package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/topupbot/topup/notify"
)

func testRenderer() *Renderer {
	return NewRenderer(RenderConfig{
		HowToURL: "https://example.com/howto",
		Methods: []PaymentMethod{
			{Name: "KPAY", Account: "0911", Holder: "Aye"},
			{Name: "WAVE", Account: "0922", Holder: "Khin"},
		},
		Note: "Write 'Shop' in the note",
	})
}

func TestRenderWelcomeHasGuideAndTopUp(t *testing.T) {
	m := testRenderer().Render(notify.Prompt{Kind: notify.KindWelcome})
	require.NotNil(t, m.Markup)
	require.Len(t, m.Markup.InlineKeyboard, 2)
	assert.Equal(t, "https://example.com/howto", m.Markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, CallbackTopUp, m.Markup.InlineKeyboard[1][0].Unique)

	noGuide := NewRenderer(RenderConfig{}).Render(notify.Prompt{Kind: notify.KindWelcome})
	require.Len(t, noGuide.Markup.InlineKeyboard, 1)
}

func TestRenderPaymentInstructions(t *testing.T) {
	m := testRenderer().Render(notify.Prompt{Kind: notify.KindPaymentInstructions, Amount: 5000})
	assert.Contains(t, m.Text, "5000 Ks")
	assert.Contains(t, m.Text, "*KPAY* - 0911\nName - Aye")
	assert.Contains(t, m.Text, "*WAVE* - 0922\nName - Khin")
	assert.Contains(t, m.Text, "Write 'Shop' in the note")
	require.Len(t, m.Markup.InlineKeyboard, 1)
	row := m.Markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, CallbackUploadProof, row[0].Unique)
	assert.Equal(t, CallbackCancel, row[1].Unique)
}

func TestRenderRejectedCarriesRequestID(t *testing.T) {
	m := testRenderer().Render(notify.Prompt{Kind: notify.KindRejected, RequestID: 42})
	require.Len(t, m.Markup.InlineKeyboard, 1)
	retry := m.Markup.InlineKeyboard[0][0]
	assert.Equal(t, CallbackRetryEmail, retry.Unique)
	assert.Equal(t, "42", retry.Data)
	assert.Equal(t, CallbackRestart, m.Markup.InlineKeyboard[0][1].Unique)
}

func TestRenderDecisionRequest(t *testing.T) {
	m := testRenderer().Render(notify.Prompt{
		Kind:        notify.KindDecisionRequest,
		RequestID:   7,
		Amount:      3000,
		Email:       "john_doe@mail.com",
		ProofFileID: "file-1",
	})
	assert.Equal(t, "file-1", m.PhotoID)
	assert.Contains(t, m.Text, "#7")
	assert.Contains(t, m.Text, "3000 Ks")
	assert.Contains(t, m.Text, `john\_doe@mail.com`)
	assert.Contains(t, m.Text, "Telegram: N/A")

	m = testRenderer().Render(notify.Prompt{Kind: notify.KindDecisionRequest, Username: "bob"})
	assert.Contains(t, m.Text, "Telegram: @bob")
}

func TestRenderLedgerFailedRetryHint(t *testing.T) {
	r := testRenderer()
	retry := r.Render(notify.Prompt{Kind: notify.KindLedgerFailed, RequestID: 3, Detail: "timeout", Retryable: true})
	assert.Contains(t, retry.Text, "#3: timeout")
	assert.Contains(t, retry.Text, "Nothing was credited")

	manual := r.Render(notify.Prompt{Kind: notify.KindLedgerFailed, RequestID: 3})
	assert.Contains(t, manual.Text, "Check the balance")
}

func TestRenderPendingList(t *testing.T) {
	r := testRenderer()
	assert.Equal(t, "✅ No pending requests.", r.Render(notify.Prompt{Kind: notify.KindPendingList}).Text)

	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	m := r.Render(notify.Prompt{Kind: notify.KindPendingList, Pending: []notify.Summary{
		{ID: 1, Email: "a@b.c", Amount: 1000, Username: "ann", SubmittedAt: at},
		{ID: 2, Email: "d@e.f", Amount: 2000, SubmittedAt: at},
	}})
	assert.Contains(t, m.Text, "Pending requests: 2")
	assert.Contains(t, m.Text, "#1 1000 Ks a@b.c @ann 2026-03-01 10:30")
	assert.Contains(t, m.Text, "#2 2000 Ks d@e.f N/A")
}

func TestRenderEveryKindHasText(t *testing.T) {
	kinds := []notify.Kind{
		notify.KindWelcome, notify.KindAskAmount, notify.KindAmountInvalid, notify.KindAmountTooLow,
		notify.KindPaymentInstructions, notify.KindAskProof, notify.KindProofReused, notify.KindProofExpected,
		notify.KindProofUnexpected, notify.KindAskEmail, notify.KindEmailInvalid, notify.KindSubmitted,
		notify.KindCancelled, notify.KindTemporaryFailure, notify.KindStaleAction, notify.KindIdleHint,
		notify.KindCredited, notify.KindRejected, notify.KindDecisionRequest, notify.KindAuditAccepted,
		notify.KindAuditRejected, notify.KindAccountNotFound, notify.KindAlreadyResolved, notify.KindUserUnknown,
		notify.KindUserUnreachable, notify.KindLedgerFailed, notify.KindReplyRequired, notify.KindPendingList,
	}
	r := testRenderer()
	for _, k := range kinds {
		m := r.Render(notify.Prompt{Kind: k})
		assert.NotEmpty(t, m.Text, k)
		assert.NotEqual(t, string(k), m.Text, "kind %s falls through to the default", k)
	}
}
