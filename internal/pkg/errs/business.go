package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule and state-machine failures.
var (
	ErrOutOfStock         = errors.New("out of stock")
	ErrNoAgentAvailable   = errors.New("no delivery agent available")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrGateway            = errors.New("payment gateway error")
	ErrConflict           = errors.New("concurrent modification conflict")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMethodUnavailable  = errors.New("payment method unavailable")
	ErrProofRequired      = errors.New("proof of delivery required")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrAlreadyExists      = errors.New("object already exists")
	ErrAttemptsExhausted  = errors.New("attempts exhausted")
	ErrNotPermitted       = errors.New("actor is not permitted")
)

// OutOfStockError names the product line that could not be reserved.
type OutOfStockError struct {
	StoreProductID string
	Requested      int
	Available      int
}

func NewOutOfStockError(storeProductID string, requested, available int) *OutOfStockError {
	return &OutOfStockError{
		StoreProductID: storeProductID,
		Requested:      requested,
		Available:      available,
	}
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s: product %s requested %d, available %d",
		ErrOutOfStock, e.StoreProductID, e.Requested, e.Available)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

type NoAgentAvailableError struct {
	OrderID string
}

func NewNoAgentAvailableError(orderID string) *NoAgentAvailableError {
	return &NoAgentAvailableError{OrderID: orderID}
}

func (e *NoAgentAvailableError) Error() string {
	return fmt.Sprintf("%s: order %s", ErrNoAgentAvailable, e.OrderID)
}

func (e *NoAgentAvailableError) Unwrap() error {
	return ErrNoAgentAvailable
}

type InsufficientFundsError struct {
	WalletID  string
	Requested string
	Balance   string
}

func NewInsufficientFundsError(walletID string, requested, balance fmt.Stringer) *InsufficientFundsError {
	return &InsufficientFundsError{
		WalletID:  walletID,
		Requested: requested.String(),
		Balance:   balance.String(),
	}
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: wallet %s requested %s, balance %s",
		ErrInsufficientFunds, e.WalletID, e.Requested, e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// InvalidTransitionError reports a status change the state machine does not allow.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func NewInvalidTransitionError(entity string, from, to fmt.Stringer) *InvalidTransitionError {
	return &InvalidTransitionError{
		Entity: entity,
		From:   from.String(),
		To:     to.String(),
	}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// GatewayError wraps a failed call to the external payment gateway.
type GatewayError struct {
	Operation string
	Code      string
	Cause     error
}

func NewGatewayError(operation, code string, cause error) *GatewayError {
	return &GatewayError{
		Operation: operation,
		Code:      code,
		Cause:     cause,
	}
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s failed with %s (cause: %v)", ErrGateway, e.Operation, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed with %s", ErrGateway, e.Operation, e.Code)
}

func (e *GatewayError) Unwrap() error {
	return ErrGateway
}

// ConflictError is returned when a row changed since it was read. The whole operation must be retried.
type ConflictError struct {
	Entity string
	ID     string
}

func NewConflictError(entity, id string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %s was modified concurrently", ErrConflict, e.Entity, e.ID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

type InvalidAmountError struct {
	Amount string
	Limit  string
}

func NewInvalidAmountError(amount, limit fmt.Stringer) *InvalidAmountError {
	return &InvalidAmountError{Amount: amount.String(), Limit: limit.String()}
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("%s: %s exceeds limit %s", ErrInvalidAmount, e.Amount, e.Limit)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

type MethodUnavailableError struct {
	Method string
	Reason string
}

func NewMethodUnavailableError(method, reason string) *MethodUnavailableError {
	return &MethodUnavailableError{Method: method, Reason: reason}
}

func (e *MethodUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrMethodUnavailable, e.Method, e.Reason)
}

func (e *MethodUnavailableError) Unwrap() error {
	return ErrMethodUnavailable
}

// InvariantViolationError marks persisted state that breaks a ledger invariant.
// The affected row stays frozen until an operator repairs it.
type InvariantViolationError struct {
	Entity string
	ID     string
	Detail string
}

func NewInvariantViolationError(entity, id, detail string) *InvariantViolationError {
	return &InvariantViolationError{Entity: entity, ID: id, Detail: detail}
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrInvariantViolation, e.Entity, e.ID, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}
