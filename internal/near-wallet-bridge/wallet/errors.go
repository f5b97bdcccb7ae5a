package wallet

import (
	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/dialect"
)

var (
	// ErrProviderUnavailable means neither the extension nor the SDK can serve requests.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrConnectFailed marks sign-in rejections and responses without an account.
	ErrConnectFailed = errors.New("wallet connect failed")
	// ErrNotConnected is returned when no session is persisted.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrMalformedResult means the wallet answered but the result is unusable.
	ErrMalformedResult = dialect.ErrMalformedResult
	// ErrRemoteRequestFailed marks failures reported by the wallet request itself.
	ErrRemoteRequestFailed = errors.New("wallet request failed")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

// kindError tags a cause with one of the sentinels above. Both the standard
// and the cockroachdb errors.Is match the kind and anything in the cause chain.
type kindError struct {
	kind  error
	cause error
}

// WithKind returns cause tagged with kind. A nil cause yields nil.
func WithKind(kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: kind, cause: cause}
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *kindError) Unwrap() error { return e.cause }

func (e *kindError) Is(target error) bool { return target == e.kind }
