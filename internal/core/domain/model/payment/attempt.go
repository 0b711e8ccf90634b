package payment

import "time"

// Operation names the kind of interaction an attempt records.
type Operation string

const (
	OperationInitiate    Operation = "initiate"
	OperationCallback    Operation = "callback"
	OperationWalletDebit Operation = "wallet_debit"
	OperationCashCollect Operation = "cash_collect"
	OperationRefund      Operation = "refund"
	OperationCancel      Operation = "cancel"
)

// Exchange is what was sent and received in one interaction. Duration is zero for
// interactions the engine did not time, such as inbound callbacks.
type Exchange struct {
	Request  string
	Response string
	Duration time.Duration
}

// Attempt is one interaction with the gateway or ledger for a payment, numbered from 1.
// Status is the payment status once the interaction was applied.
type Attempt struct {
	Number          int
	Operation       Operation
	Status          Status
	Success         bool
	RequestPayload  string
	GatewayResponse string
	ErrorMessage    string
	Duration        time.Duration
	At              time.Time
}
