// Package dedup recognizes the same transaction reported by more than one channel.
package dedup

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/spice-inbox/internal/model"
)

// BucketSeconds is the width of the time bucket used by fallback fingerprints.
const BucketSeconds = 5 * 60

// MinReferenceLength is the shortest normalized reference that identifies an event on its own.
const MinReferenceLength = 6

// Fingerprint computes the deduplication signature of a candidate.
//
// A reference number of at least six alphanumerics identifies the event on its own.
// Otherwise the amount, direction, five-minute bucket of OccurredAt and account tail
// are combined; two low-information events inside one bucket will collide.
func Fingerprint(c model.TransactionCandidate) model.Fingerprint {
	if ref := NormalizeReference(c.ReferenceID); len(ref) >= MinReferenceLength {
		return model.Fingerprint("ref:" + ref)
	}

	tail := c.AccountTail
	if tail == "" {
		tail = "NA"
	}
	bucket := c.OccurredAt.Unix() / BucketSeconds

	return model.Fingerprint(fmt.Sprintf("amt:%s|%s|%d|%s",
		c.Amount.StringFixed(2), c.Direction, bucket, tail))
}

// NormalizeReference uppercases ref and drops everything but letters and digits.
func NormalizeReference(ref string) string {
	var b strings.Builder
	b.Grow(len(ref))
	for _, r := range strings.ToUpper(ref) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
