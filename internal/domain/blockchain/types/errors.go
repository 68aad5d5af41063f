package types

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ErrGeneric ErrorKind = iota
	ErrInvalidArgument
	ErrInsufficientFunds
	ErrSubmissionRejected
	ErrReceiptTimeout
	ErrContractLogic
	ErrTransactionReverted
)

var kindNames = map[ErrorKind]string{
	ErrGeneric:             "Generic",
	ErrInvalidArgument:     "InvalidArgument",
	ErrInsufficientFunds:   "InsufficientFunds",
	ErrSubmissionRejected:  "SubmissionRejected",
	ErrReceiptTimeout:      "ReceiptTimeout",
	ErrContractLogic:       "ContractLogicError",
	ErrTransactionReverted: "TransactionReverted",
}

func (k ErrorKind) String() string {
	return kindNames[k]
}

// ChainError is returned by everything that talks to the chain. Code and Message are what the
// ledger records when the error fails a transaction.
type ChainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ChainError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

func NewChainError(kind ErrorKind, code string, format string, a ...any) *ChainError {
	return &ChainError{Kind: kind, Code: code, Message: fmt.Sprintf(format, a...)}
}

func WrapChainError(kind ErrorKind, code string, err error) *ChainError {
	return &ChainError{Kind: kind, Code: code, Message: err.Error(), Err: err}
}

// IsKind reports whether err or any error it wraps is a ChainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Kind == kind
	}

	return false
}

// AsChainError returns the ChainError carried by err, if any.
func AsChainError(err error) (*ChainError, bool) {
	var chainErr *ChainError
	ok := errors.As(err, &chainErr)
	return chainErr, ok
}
