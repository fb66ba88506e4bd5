package extract

import "regexp"

// namedPattern is a compiled expression with a label used in logs and rejections.
type namedPattern struct {
	re   *regexp.Regexp
	name string
}

func compile(name, expr string) namedPattern {
	return namedPattern{name: name, re: regexp.MustCompile(`(?i)` + expr)}
}

const secretCode = `(?:otp|one[\s-]?time[\s-]?password|verification\s+code|security\s+code)`

// Non-transaction signals. Checked before anything else so that balance checks,
// failed payments and collect requests never produce a candidate.
//
// Code deliveries are matched by the code itself, not by the word "OTP":
// transaction alerts often end with a "never share your OTP" footer.
var sensitivePatterns = []namedPattern{
	compile("otp", `\b`+secretCode+`\s*(?:is|:|-)\s*:?\s*\d{4,8}\b`),
	compile("otp", `\b`+secretCode+`\s+(?:for|to)\b.{0,80}?\bis\s*:?\s*\d{4,8}\b`),
	compile("otp", `\b\d{4,8}\s+(?:is|as)\s+(?:your\s+|the\s+)?(?:\w+\s+){0,3}?`+secretCode+`\b`),
}

var nonTransactionPatterns = []namedPattern{
	compile("failed", `\b(failed|failure|declined|unsuccessful|could\s+not\s+be\s+(processed|completed)|has\s+been\s+rejected)\b`),
	compile("request", `\b(requests?|requested|collect\s+request)\b`),
	compile("reminder", `\breminder\b`),
	compile("due", `\b(over)?due\b`),
	compile("pending", `\bpending\b`),
	compile("scheduled", `\b(scheduled|will\s+be\s+(debited|credited|deducted|charged))\b`),
	compile("mandate_setup", `\b(mandate|e-?mandate|auto-?pay|auto[\s-]debit|standing\s+instruction)\b[^.]{0,60}\b(set\s?up|created|registered|registration|activated)\b`),
	compile("mandate_setup", `\b(set\s?up|create|register)\w*\b[^.]{0,40}\b(mandate|auto-?pay)\b`),
	compile("promotional", `\b(pre-?approved|kyc|loan\s+offer)\b`),
}

// balanceMention is any reference to an account balance, with or without a figure.
var balanceMention = regexp.MustCompile(`(?i)\b(?:avl\.?|avbl\.?|available|a/?c)\s*bal(?:ance)?\b|\bbal(?:ance)?\b`)

// transactionVerb distinguishes a transaction that mentions a balance from a
// plain balance inquiry.
var transactionVerb = regexp.MustCompile(`(?i)\b(debited|credited|paid|sent|received|spent|withdrawn|withdrawal|transferred|purchase|refund(ed)?|deducted|deposited|payment|successful(ly)?|txn|transaction)\b`)

const amountNumber = `(\d[\d,]*(?:\.\d{1,2})?)`

const currency = `(?:\brs\.?|\binr\b|₹)`

// balancePattern captures "Avl Bal Rs 4,500.00" style clauses. Matches are
// removed from the text before the amount search.
var balancePattern = regexp.MustCompile(`(?i)\b(?:avl\.?\s*bal(?:ance)?|avbl\.?\s*bal(?:ance)?|available\s+(?:bal(?:ance)?|limit)|a/?c\s+bal(?:ance)?|bal(?:ance)?)\b\s*(?:is|of)?\s*[:\-]?\s*` + currency + `?\s*` + amountNumber)

var amountPatterns = []namedPattern{
	compile("currency_prefix", currency+`\s*`+amountNumber),
	compile("currency_suffix", amountNumber+`\s*(?:rs\b\.?|inr\b|₹|rupees\b)`),
	compile("amount_of", `\bamount\s*(?:of)?\s*[:\-]?\s*`+amountNumber),
	compile("verb_amount", `\b(?:debited|credited|paid|sent|received|spent)\s+(?:with|by|for)?\s*`+amountNumber),
}

type directionRule struct {
	namedPattern
	credit bool
}

// Ordered by confidence: explicit phrasing first, generic keyword bags last.
var directionRules = []directionRule{
	{compile("sent_phrase", `\b(you\s+(have\s+)?(sent|paid)|sent\s+to|paid\s+to|transferred\s+to|money\s+sent|payment\s+(of\s+\S+\s+)?to)\b`), false},
	{compile("received_phrase", `\b(you\s+(have\s+)?received|received\s+from|money\s+received|credited\s+to\s+your|deposited\s+(in|to|into)\s+your|added\s+to\s+your)\b`), true},
	{compile("received_amount", `(?:^|\s)received\s+(?:rs\b\.?|inr\b|₹|\d)`), true},
	{compile("refund", `\b(refund(ed)?|revers(al|ed)|cash\s?back|charge\s?back)\b`), true},
	{compile("debit_keyword", `\b(debited|debit|spent|withdrawn|withdrawal|purchase|paid|sent|deducted|transferred|charged)\b`), false},
	{compile("credit_keyword", `\b(credited|credit|received|deposited|deposit)\b`), true},
}

// Merchant names start with a letter and stop at the first clause boundary.
const (
	merchantName = `([A-Za-z][A-Za-z0-9&'.\-_ ]{0,39}?)`
	merchantStop = `(?:\s+(?:on|via|using|ref|refno|for|from|to|by|with|upi|avl|avbl|txn|and|is|has|was|dated|info)\b|\s*₹|\s+(?:rs|inr)\b|[,;:!()]|\.(?:\s|$)|\s*$)`
)

var merchantPatterns = []namedPattern{
	compile("paid_to", `\b(?:paid|sent|payment(?:\s+of\s+(?:rs\.?\s*|inr\s*|₹\s*)?\S+)?|transferred)\s+to\s+`+merchantName+merchantStop),
	compile("at", `\bat\s+`+merchantName+merchantStop),
	compile("to", `\bto\s+`+merchantName+merchantStop),
	compile("from", `\bfrom\s+`+merchantName+merchantStop),
	compile("info", `\binfo\s*[:\-]\s*`+merchantName+merchantStop),
}

var vpaPattern = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9.\-_]{1,}@[a-z]{2,})\b`)

// Words that mean a captured "merchant" is really the user's own account.
var implausibleMerchant = regexp.MustCompile(`(?i)^(your|you|my|the|self|a/?c|ac|account|acct|card|bank|upi|vpa|rs|inr|beneficiary)\b|\bx{2,}|\d{4,}`)

var accountPatterns = []namedPattern{
	compile("labelled", `\b(?:a/?c|acct|account|card)(?:\s*(?:no\.?|number|ending(?:\s+(?:with|in))?))?\s*[:\-]?\s*[x*#.\s]*(\d{4})\b`),
	compile("masked", `[x*]{2,}(\d{4})\b`),
}

var referencePattern = regexp.MustCompile(`(?i)\b(?:upi\s*ref(?:erence)?|ref(?:erence)?|txn(?:\s*id)?|utr|rrn|transaction\s+id)\b\.?\s*(?:no|number|id)?\.?\s*[:\-#]?\s*([A-Za-z0-9]{6,})`)

var hasDigit = regexp.MustCompile(`\d`)

// smsPrefix is the "VM-HDFCBK:" header some forwarders prepend to the body.
var smsPrefix = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{3,8}:\s*`)

var suggestionPatterns = []struct {
	re       *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`(?i)\b(atm|cash\s+withdrawal)\b`), "cash"},
	{regexp.MustCompile(`(?i)\b(salary|payroll)\b`), "income"},
}
