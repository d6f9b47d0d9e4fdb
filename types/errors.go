package types

// ErrorCode is the ledger error taxonomy. Codes are comparable, so wrapped
// errors can be matched with errors.Is.
type ErrorCode int

const (
	ErrValidation        ErrorCode = 10
	ErrInsufficientFunds ErrorCode = 20
	ErrNameTaken         ErrorCode = 21
	ErrNotFound          ErrorCode = 30
	ErrUnauthorized      ErrorCode = 31
	ErrRateLimited       ErrorCode = 40
	ErrStorageBusy       ErrorCode = 50
	ErrPeerUnreachable   ErrorCode = 51
)

var codeToErrMap = map[int]string{
	10: "validation failed",
	20: "insufficient funds",
	21: "name taken",
	30: "not found",
	31: "unauthorized",
	40: "rate limited",
	50: "storage busy",
	51: "peer unreachable",
}

func (err ErrorCode) String() string {
	return codeToErrMap[int(err)]
}

func (err ErrorCode) Error() string {
	return err.String()
}

// Transient reports whether the failure is retried on the next scheduled cycle.
func (err ErrorCode) Transient() bool {
	return err == ErrStorageBusy || err == ErrPeerUnreachable
}
