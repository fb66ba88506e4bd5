package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/ledger"
)

// classify maps an API error onto the ledger contract and marks whether
// common.WithRetry may try the call again.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *common.RetryableError
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ledger.ErrNotAuthenticated) || errors.Is(err, ledger.ErrRecordNotFound) {
		return &common.RetryableError{Err: err, Retryable: false}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", ledger.ErrNotAuthenticated, err), Retryable: false}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return &common.RetryableError{Err: fmt.Errorf("%w: %w", ledger.ErrNotAuthenticated, err), Retryable: false}
		case apiErr.Code == http.StatusTooManyRequests:
			return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
		case apiErr.Code >= http.StatusInternalServerError:
			return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrLedgerUnavailable, err), Retryable: true}
		default:
			return &common.RetryableError{Err: err, Retryable: false}
		}
	}

	// Transport failures.
	return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrLedgerUnavailable, err), Retryable: true}
}
