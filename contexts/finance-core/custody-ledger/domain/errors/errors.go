package errors

import "errors"

var (
	ErrInvalidInput      = errors.New("custody input is invalid")
	ErrAccountNotFound   = errors.New("custody account not found")
	ErrInsufficientFunds = errors.New("custody account has insufficient funds")
	ErrReferenceConflict = errors.New("transfer reference already used with different payload")
	ErrBalanceOverflow   = errors.New("custody balance would exceed the representable maximum")
)
