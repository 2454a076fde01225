package api

import (
	"errors"

	"github.com/airchains-network/devchain/types"
)

// JSON-RPC error codes
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternal         = -32603
	CodeServer           = -32000
	CodeRejected         = -32003
	CodeResourceUnusable = -32005
)

// ErrorCode maps an engine error kind to its JSON-RPC code
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, types.ErrMethodNotFound):
		return CodeMethodNotFound
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, types.ErrInvalidTimestamp):
		return CodeInvalidParams
	case errors.Is(err, types.ErrUnauthorized),
		errors.Is(err, types.ErrNonceTooLow),
		errors.Is(err, types.ErrNonceTooHigh),
		errors.Is(err, types.ErrUnderpriced):
		return CodeRejected
	case errors.Is(err, types.ErrRemoteUnavailable):
		return CodeResourceUnusable
	case errors.Is(err, types.ErrEngineFault):
		return CodeInternal
	default:
		return CodeServer
	}
}
