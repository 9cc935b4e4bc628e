package signature

// Reason names what was wrong with a presented signature.
type Reason string

const (
	ReasonPrefix   Reason = "missing hmac-sha256 prefix"
	ReasonEncoding Reason = "signature is not hex encoded"
	ReasonMismatch Reason = "signature mismatch"
)

// VerificationError is returned by Verify for any rejected header value.
type VerificationError struct {
	Header string
	Reason Reason
}

func (e VerificationError) Error() string {
	return e.Header + " rejected: " + string(e.Reason)
}

func rejected(reason Reason) VerificationError {
	return VerificationError{Header: Header, Reason: reason}
}
