package extract

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// senderCodes maps the bank part of an SMS sender header to an institution name.
var senderCodes = map[string]string{
	"HDFCBK": "HDFC Bank",
	"HDFCBN": "HDFC Bank",
	"ICICIB": "ICICI Bank",
	"ICICIT": "ICICI Bank",
	"SBIINB": "State Bank of India",
	"SBIPSG": "State Bank of India",
	"SBMSMS": "State Bank of India",
	"ATMSBI": "State Bank of India",
	"CBSSBI": "State Bank of India",
	"AXISBK": "Axis Bank",
	"KOTAKB": "Kotak Mahindra Bank",
	"PNBSMS": "Punjab National Bank",
	"BOIIND": "Bank of India",
	"YESBNK": "Yes Bank",
	"IDFCFB": "IDFC First Bank",
	"INDUSB": "IndusInd Bank",
	"CANBNK": "Canara Bank",
	"UNIONB": "Union Bank of India",
	"BOBTXN": "Bank of Baroda",
	"PAYTMB": "Paytm Payments Bank",
	"AIRBNK": "Airtel Payments Bank",
}

// paymentApps is the allow-list of notification packages that carry payment events.
var paymentApps = map[string]string{
	"com.google.android.apps.nbu.paisa.user": "Google Pay",
	"com.phonepe.app":                        "PhonePe",
	"net.one97.paytm":                        "Paytm",
	"in.org.npci.upiapp":                     "BHIM",
	"in.amazon.mShop.android.shopping":       "Amazon Pay",
	"com.dreamplug.androidapp":               "CRED",
	"com.mobikwik_new":                       "MobiKwik",
	"com.snapwork.hdfc":                      "HDFC Bank",
	"com.csam.icici.bank.imobile":            "ICICI Bank",
	"com.sbi.lotusintouch":                   "State Bank of India",
	"com.axis.mobile":                        "Axis Bank",
	"com.msf.kbank.mobile":                   "Kotak Mahindra Bank",
}

var bankMentions = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\bhdfc\b`), "HDFC Bank"},
	{regexp.MustCompile(`(?i)\bicici\b`), "ICICI Bank"},
	{regexp.MustCompile(`(?i)\b(sbi|state bank)\b`), "State Bank of India"},
	{regexp.MustCompile(`(?i)\baxis\b`), "Axis Bank"},
	{regexp.MustCompile(`(?i)\bkotak\b`), "Kotak Mahindra Bank"},
	{regexp.MustCompile(`(?i)\b(pnb|punjab national)\b`), "Punjab National Bank"},
	{regexp.MustCompile(`(?i)\byes bank\b`), "Yes Bank"},
	{regexp.MustCompile(`(?i)\bidfc\b`), "IDFC First Bank"},
	{regexp.MustCompile(`(?i)\bindusind\b`), "IndusInd Bank"},
	{regexp.MustCompile(`(?i)\bcanara\b`), "Canara Bank"},
	{regexp.MustCompile(`(?i)\bbank of baroda\b`), "Bank of Baroda"},
}

var senderHeader = regexp.MustCompile(`^[A-Z]{2}-`)

// senderPrefixes lists the sender codes longest first, ties in lexical order,
// so the prefix fallback always resolves the most specific code.
var senderPrefixes = func() []string {
	codes := make([]string, 0, len(senderCodes))
	for code := range senderCodes {
		codes = append(codes, code)
	}
	slices.SortFunc(codes, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return codes
}()

// BankFromSender resolves an SMS sender such as "VM-HDFCBK" to an institution name.
func BankFromSender(sender string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(sender))
	code = senderHeader.ReplaceAllString(code, "")
	if name, ok := senderCodes[code]; ok {
		return name, true
	}
	// Operators append suffixes such as "-S" or "-T" to registered headers.
	for _, prefix := range senderPrefixes {
		if strings.HasPrefix(code, prefix) {
			return senderCodes[prefix], true
		}
	}
	return "", false
}

// AppFromPackage resolves a notification package to the payment app name.
// Packages outside the allow-list report false.
func AppFromPackage(pkg string) (string, bool) {
	name, ok := paymentApps[strings.TrimSpace(pkg)]
	return name, ok
}

func bankFromText(text string) string {
	for _, m := range bankMentions {
		if m.re.MatchString(text) {
			return m.name
		}
	}
	return ""
}
