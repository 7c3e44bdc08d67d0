package domain

// Gateway transaction status codes, as delivered in the callback's
// transactionStatus field.
type TransactionStatus int

const (
	StatusSale       TransactionStatus = 0
	StatusInitialize TransactionStatus = 1
	StatusCredit     TransactionStatus = 2
	StatusAuthorize  TransactionStatus = 3
	StatusCancel     TransactionStatus = 4
	StatusFailure    TransactionStatus = 5
	StatusCapture    TransactionStatus = 6
)

// Callback is one inbound gateway notification, flattened from the transport
// payload. Raw keeps every field the gateway sent so transactions can store
// the complete payload for audit.
type Callback struct {
	// TransactionNumber is the gateway's unique id for this transaction
	// attempt, and the idempotency key for processing.
	TransactionNumber string

	// Status is nil when the gateway sent no transactionStatus field or an
	// unparsable one.
	Status *TransactionStatus

	// Pending qualifies StatusInitialize: a pending initialize is an open
	// authorization, a settled one is a payment. Per gateway documentation,
	// status 1 requires inspecting the secondary pending reason field.
	Pending bool

	Raw map[string]string
}

// VerboseError assembles the gateway-supplied error detail carried in a
// failure callback. Empty when the payload has no error fields.
func (c Callback) VerboseError() string {
	var out string
	if v := c.Raw["errorCode"]; v != "" {
		out = "Error code: " + v + "."
	}
	if v := c.Raw["description"]; v != "" {
		if out != "" {
			out += " "
		}
		out += "Description: " + v + "."
	}
	if v := c.Raw["thirdPartyError"]; v != "" {
		if out != "" {
			out += " "
		}
		out += "Third party error: " + v + "."
	}
	return out
}
