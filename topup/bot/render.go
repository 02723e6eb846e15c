package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/topupbot/core/telegram/format"
	"github.com/m3rciful/topupbot/core/telegram/keyboard"
	"github.com/m3rciful/topupbot/topup/notify"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques carried by inline buttons.
const (
	CallbackTopUp       = "topup"
	CallbackUploadProof = "uploadProof"
	CallbackCancel      = "cancel"
	CallbackRetryEmail  = "retryEmail"
	CallbackRestart     = "restart"
)

// PaymentMethod is one account the user can pay into.
type PaymentMethod struct {
	Name    string `yaml:"name"`
	Account string `yaml:"account"`
	Holder  string `yaml:"holder"`
}

// RenderConfig holds the operator-facing and user-facing copy settings.
type RenderConfig struct {
	Currency string
	HowToURL string
	Methods  []PaymentMethod
	Note     string
}

// Message is a rendered prompt ready for telebot.
type Message struct {
	Text string
	// PhotoID, when set, sends Text as the caption of that photo.
	PhotoID string
	Markup  *tele.ReplyMarkup
}

// Renderer turns prompts into Telegram messages (Markdown V1).
type Renderer struct {
	cfg RenderConfig
}

// NewRenderer returns a renderer for cfg.
func NewRenderer(cfg RenderConfig) *Renderer {
	if cfg.Currency == "" {
		cfg.Currency = "Ks"
	}
	return &Renderer{cfg: cfg}
}

func (r *Renderer) money(v int64) string {
	return strconv.FormatInt(v, 10) + " " + format.MD(r.cfg.Currency)
}

var (
	btnCancel  = keyboard.Callback("❌ Cancel", CallbackCancel)
	btnTopUp   = keyboard.Callback("💰 Top up", CallbackTopUp)
	btnRestart = keyboard.Callback("🔄 Start over", CallbackRestart)
)

func cancelOnly() *tele.ReplyMarkup {
	return keyboard.Column(btnCancel)
}

// Render builds the message for p.
func (r *Renderer) Render(p notify.Prompt) Message {
	switch p.Kind {
	case notify.KindWelcome:
		var rows [][]keyboard.Button
		if r.cfg.HowToURL != "" {
			rows = append(rows, []keyboard.Button{keyboard.Link("How to use ✅", r.cfg.HowToURL)})
		}
		rows = append(rows, []keyboard.Button{btnTopUp})
		return Message{
			Text:   "Welcome to the top-up service.\n\nPlease read the guide before you pay ‼️",
			Markup: keyboard.Rows(rows...),
		}
	case notify.KindAskAmount:
		return Message{
			Text:   fmt.Sprintf("💰 Enter the amount to top up.\n\nThe minimum is %s.", r.money(p.MinAmount)),
			Markup: cancelOnly(),
		}
	case notify.KindAmountInvalid:
		return Message{Text: "❌ The amount is not valid. Send digits only."}
	case notify.KindAmountTooLow:
		return Message{Text: fmt.Sprintf("❌ Enter an amount of at least %s.", r.money(p.MinAmount))}
	case notify.KindPaymentInstructions:
		return Message{
			Text: r.instructions(p.Amount),
			Markup: keyboard.Rows([]keyboard.Button{
				keyboard.Callback("📤 Upload receipt", CallbackUploadProof),
				btnCancel,
			}),
		}
	case notify.KindAskProof:
		return Message{
			Text:   "📸 Send the payment receipt.\n‼️ One photo only, without pressing other buttons.",
			Markup: cancelOnly(),
		}
	case notify.KindProofReused:
		return Message{
			Text:   "❌ This receipt was already submitted. Send the receipt of a new payment.",
			Markup: cancelOnly(),
		}
	case notify.KindProofExpected:
		return Message{Text: "📸 Please send the receipt as a photo.", Markup: cancelOnly()}
	case notify.KindProofUnexpected:
		return Message{Text: "❌ Send a photo only when the bot asks for it."}
	case notify.KindAskEmail:
		return Message{
			Text:   "📧 Copy the email of your website account and paste it here.\nExample: example@gmail.com",
			Markup: cancelOnly(),
		}
	case notify.KindEmailInvalid:
		return Message{Text: "❌ The email is wrong. It must contain @. Try again."}
	case notify.KindSubmitted:
		return Message{
			Text: fmt.Sprintf("🎉 Email: %s\n\n✔️ Top-up request #%d is registered.\n📌 We will let you know once the balance is credited.",
				format.MD(p.Email), p.RequestID),
			Markup: keyboard.Column(keyboard.Callback("💰 Top up again", CallbackTopUp)),
		}
	case notify.KindCancelled:
		return Message{Text: "❌ Cancelled. Starting over."}
	case notify.KindTemporaryFailure:
		return Message{Text: "⚠️ Something went wrong on our side. Please try again in a moment."}
	case notify.KindStaleAction:
		return Message{
			Text:   "⚠️ This button is no longer active.",
			Markup: keyboard.Column(btnRestart),
		}
	case notify.KindIdleHint:
		return Message{
			Text:   "Press the button below to start a top-up.",
			Markup: keyboard.Column(btnTopUp),
		}
	case notify.KindCredited:
		return Message{Text: fmt.Sprintf("🎉 Your balance was increased by %s.\n💰 Balance: %s",
			r.money(p.Amount), r.money(p.Balance))}
	case notify.KindRejected:
		return Message{
			Text: fmt.Sprintf("❌ Request #%d was not accepted.\n\n"+
				"The payment did not arrive or the email is wrong.\n"+
				"If you paid correctly, press the button to enter your email again.\n"+
				"Otherwise start over.", p.RequestID),
			Markup: keyboard.Rows([]keyboard.Button{
				keyboard.Callback("📧 Enter email again", CallbackRetryEmail).With(strconv.FormatInt(p.RequestID, 10)),
				btnRestart,
			}),
		}

	case notify.KindDecisionRequest:
		return Message{
			Text: fmt.Sprintf("🆕 New top-up #%d\n\n💸 Amount: %s\n📧 Email: %s\n🆔 Telegram: %s\n📩 Reply with /yes or /no.",
				p.RequestID, r.money(p.Amount), format.MD(p.Email), format.MD(handle(p.Username))),
			PhotoID: p.ProofFileID,
		}
	case notify.KindAuditAccepted:
		return Message{Text: fmt.Sprintf("📋 Operator log:\n%s ➕ %s → %s accepted (#%d).",
			format.MD(p.Operator), r.money(p.Amount), format.MD(p.Email), p.RequestID)}
	case notify.KindAuditRejected:
		return Message{Text: fmt.Sprintf("📋 Operator log:\n%s ❌ %s rejected (#%d).",
			format.MD(p.Operator), format.MD(p.Email), p.RequestID)}
	case notify.KindAccountNotFound:
		return Message{Text: fmt.Sprintf("❌ %s was not found in the ledger (#%d).", format.MD(p.Email), p.RequestID)}
	case notify.KindAlreadyResolved:
		return Message{Text: "ℹ️ This request is already resolved or is not a top-up request."}
	case notify.KindUserUnknown:
		return Message{Text: fmt.Sprintf("⚠️ User for request #%d was not found.", p.RequestID)}
	case notify.KindUserUnreachable:
		return Message{Text: fmt.Sprintf("⚠️ Could not message the user of request #%d: %s", p.RequestID, format.MD(p.Detail))}
	case notify.KindLedgerFailed:
		text := "❌ Ledger error"
		if p.RequestID != 0 {
			text += fmt.Sprintf(" for #%d", p.RequestID)
		}
		if p.Detail != "" {
			text += ": " + format.MD(p.Detail)
		}
		if p.Retryable {
			text += "\nNothing was credited. Reply to the request again to retry."
		} else {
			text += "\nThe credit may have been applied. Check the balance before crediting by hand."
		}
		return Message{Text: text}
	case notify.KindReplyRequired:
		return Message{Text: "❗ Use this command as a reply to the bot's request message."}
	case notify.KindPendingList:
		return Message{Text: r.pendingList(p.Pending)}
	}
	return Message{Text: string(p.Kind)}
}

func (r *Renderer) instructions(amount int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ You will top up %s.\n\n💳 Payment details:\n\n", r.money(amount))
	for _, m := range r.cfg.Methods {
		fmt.Fprintf(&b, "*%s* - %s\nName - %s\n\n", format.MD(m.Name), format.MD(m.Account), format.MD(m.Holder))
	}
	if r.cfg.Note != "" {
		fmt.Fprintf(&b, "⚠️ %s", format.MD(r.cfg.Note))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) pendingList(items []notify.Summary) string {
	if len(items) == 0 {
		return "✅ No pending requests."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Pending requests: %d\n", len(items))
	for _, s := range items {
		fmt.Fprintf(&b, "\n#%d %s %s %s %s", s.ID, r.money(s.Amount), format.MD(s.Email),
			format.MD(handle(s.Username)), s.SubmittedAt.UTC().Format("2006-01-02 15:04"))
	}
	return b.String()
}

func handle(username string) string {
	if username == "" {
		return "N/A"
	}
	return "@" + username
}
