package types

import "errors"

// Error kinds reported by the engine. Callers wrap them with context using
// fmt.Errorf("%w: ...") and classify with errors.Is.
var (
	// ErrInvalidInput is returned for malformed addresses, hex or numbers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned for an unsigned transaction from an address
	// that is not impersonated.
	ErrUnauthorized = errors.New("no signer available for sender")
	ErrNonceTooLow  = errors.New("nonce too low")
	ErrNonceTooHigh = errors.New("nonce too high")
	ErrUnderpriced  = errors.New("transaction underpriced")
	// ErrInvalidTimestamp is returned when a timestamp override does not move
	// the chain forward.
	ErrInvalidTimestamp = errors.New("timestamp must be greater than the current head")
	// ErrRemoteUnavailable is returned when the fork source could not be
	// queried. It is retryable.
	ErrRemoteUnavailable = errors.New("fork source unavailable")
	// ErrExecutionReverted marks a transaction that failed inside the executor.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrEngineFault is an internal invariant violation. It aborts the whole
	// operation and leaves chain state unchanged.
	ErrEngineFault = errors.New("engine fault")

	ErrUnknownBlock   = errors.New("unknown block")
	ErrMethodNotFound = errors.New("method not found")
)
