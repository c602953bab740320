package types

// Envelope wraps every successful API payload as {"data": ...}. Clients decode
// into Envelope[json.RawMessage] and unmarshal Data into the concrete view.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// APIError is the client-visible failure. Code is one of the ledger error codes
// (e.g. OVER_REFUND, SHIFT_CLOSED); Details is present only for codes that allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
