// Package extract turns bank SMS and payment-app notifications into transaction candidates.
//
// Extraction is a pure, deterministic best-effort pattern match. It never panics on
// malformed input; anything it cannot read as a completed transaction comes back
// as a *Rejection.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/Veraticus/spice-inbox/internal/model"
)

// ErrRejected matches every *Rejection via errors.Is.
var ErrRejected = errors.New("message rejected")

// Reason classifies why a message produced no candidate.
type Reason string

// Rejection reasons.
const (
	ReasonEmpty              Reason = "empty"
	ReasonSensitive          Reason = "sensitive"
	ReasonNonTransaction     Reason = "non_transaction"
	ReasonBalanceInquiry     Reason = "balance_inquiry"
	ReasonNoAmount           Reason = "no_amount"
	ReasonUnsupportedApp     Reason = "unsupported_app"
	ReasonUnsupportedChannel Reason = "unsupported_channel"
	ReasonMalformed          Reason = "malformed"
)

// Rejection is returned for messages that do not describe a completed transaction.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("rejected: %s", r.Reason)
	}
	return fmt.Sprintf("rejected: %s (%s)", r.Reason, r.Detail)
}

// Is reports whether target is ErrRejected.
func (r *Rejection) Is(target error) bool {
	return target == ErrRejected
}

func reject(reason Reason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

const maxDescriptionLength = 200

// Extract reads an SMS body. sender is the SMS header (e.g. "VM-HDFCBK") and may be empty.
func Extract(body, sender string) (model.TransactionCandidate, error) {
	return ExtractMessage(model.RawMessage{
		Sender:  sender,
		Body:    body,
		Channel: model.ChannelSMS,
	})
}

// ExtractMessage reads a raw message from either channel.
func ExtractMessage(msg model.RawMessage) (candidate model.TransactionCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidate = model.TransactionCandidate{}
			err = reject(ReasonMalformed, fmt.Sprint(r))
		}
	}()

	var text, description, source string
	switch msg.Channel {
	case model.ChannelSMS:
		text = normalize(msg.Body)
		description = smsPrefix.ReplaceAllString(text, "")
		source, _ = BankFromSender(msg.Sender)

	case model.ChannelPushNotification:
		if msg.AppPackage != "" {
			app, ok := AppFromPackage(msg.AppPackage)
			if !ok {
				return model.TransactionCandidate{}, reject(ReasonUnsupportedApp, msg.AppPackage)
			}
			source = app
		}
		// Apps split "Paid to X" (title) from "Rs 250" (body).
		text = normalize(strings.TrimSpace(msg.Sender + " " + msg.Body))
		description = text

	default:
		return model.TransactionCandidate{}, reject(ReasonUnsupportedChannel, string(msg.Channel))
	}

	if text == "" {
		return model.TransactionCandidate{}, reject(ReasonEmpty, "")
	}

	if rej := screen(text); rej != nil {
		return model.TransactionCandidate{}, rej
	}

	amount, ok := findAmount(text)
	if !ok {
		return model.TransactionCandidate{}, reject(ReasonNoAmount, "")
	}

	if source == "" {
		source = bankFromText(text)
	}

	candidate = model.TransactionCandidate{
		OccurredAt:        msg.ReceivedAt,
		Amount:            amount,
		Balance:           findBalance(text),
		Direction:         findDirection(text),
		Merchant:          findMerchant(text),
		AccountTail:       findAccountTail(text),
		ReferenceID:       findReference(text),
		BankOrApp:         source,
		Description:       truncate(strings.TrimSpace(description), maxDescriptionLength),
		RawText:           msg.Body,
		SuggestedCategory: suggestCategory(text),
		Channel:           msg.Channel,
	}
	return candidate, nil
}

// normalize folds compatibility forms (full-width digits, non-breaking spaces)
// and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

func screen(text string) *Rejection {
	for _, p := range sensitivePatterns {
		if p.re.MatchString(text) {
			return reject(ReasonSensitive, p.name)
		}
	}
	for _, p := range nonTransactionPatterns {
		if p.re.MatchString(text) {
			return reject(ReasonNonTransaction, p.name)
		}
	}
	if balanceMention.MatchString(text) && !transactionVerb.MatchString(text) {
		return reject(ReasonBalanceInquiry, "")
	}
	return nil
}

func findAmount(text string) (decimal.Decimal, bool) {
	stripped := balancePattern.ReplaceAllString(text, " ")
	for _, p := range amountPatterns {
		for _, m := range p.re.FindAllStringSubmatch(stripped, -1) {
			if amount, ok := parseAmount(m[1]); ok {
				return amount, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func findBalance(text string) *decimal.Decimal {
	for _, m := range balancePattern.FindAllStringSubmatch(text, -1) {
		d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err == nil {
			return &d
		}
	}
	return nil
}

func findDirection(text string) model.Direction {
	for _, rule := range directionRules {
		if !rule.re.MatchString(text) {
			continue
		}
		if rule.credit {
			return model.DirectionCredit
		}
		return model.DirectionDebit
	}
	return model.DirectionDebit
}

func findMerchant(text string) string {
	for _, p := range merchantPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if name := cleanMerchant(m[1]); name != "" {
				return name
			}
		}
	}
	if m := vpaPattern.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

func cleanMerchant(raw string) string {
	name := strings.Trim(strings.TrimSpace(raw), "-_'&.")
	if len(name) < 2 || implausibleMerchant.MatchString(name) {
		return ""
	}
	return name
}

func findAccountTail(text string) string {
	for _, p := range accountPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func findReference(text string) string {
	for _, m := range referencePattern.FindAllStringSubmatch(text, -1) {
		if hasDigit.MatchString(m[1]) {
			return m[1]
		}
	}
	return ""
}

func suggestCategory(text string) string {
	for _, s := range suggestionPatterns {
		if s.re.MatchString(text) {
			return s.category
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ReceivedNow stamps a message that arrived without a timestamp.
func ReceivedNow(msg model.RawMessage, now func() time.Time) model.RawMessage {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = now()
	}
	return msg
}
