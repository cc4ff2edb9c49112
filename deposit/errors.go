package deposit

import "errors"

var (
	// ErrInvoiceExpired indicates the invoice has passed its expiry time.
	ErrInvoiceExpired = errors.New("deposit: invoice expired")

	// ErrInsufficientDeposit indicates the transaction output amount is less than the invoice amount.
	ErrInsufficientDeposit = errors.New("deposit: insufficient deposit amount")

	// ErrInvalidTx indicates the raw transaction cannot be deserialized.
	ErrInvalidTx = errors.New("deposit: invalid transaction")

	// ErrNoMatchingOutput indicates no transaction output pays the invoice address.
	ErrNoMatchingOutput = errors.New("deposit: no matching output found")

	// ErrInvalidParams indicates one or more parameters are invalid.
	ErrInvalidParams = errors.New("deposit: invalid parameters")
)
