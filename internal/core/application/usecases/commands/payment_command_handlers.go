package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fulfillment/internal/core/application/ledger"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"

	"github.com/shopspring/decimal"
)

// GatewayUnavailableCode is the failure code of a payment the gateway never accepted.
const GatewayUnavailableCode = "gateway_unavailable"

// InitiatePaymentResult is the payment as it stands after initiation. RedirectToken is
// set for gateway methods the customer must complete at the gateway.
type InitiatePaymentResult struct {
	Payment       *payment.Payment
	RedirectToken string
}

// InitiatePaymentCommandHandler creates a payment for a pending order and starts it
// with the method's channel:
//   - wallet: the wallet is debited and the payment succeeds in the same transaction
//   - cash on delivery: the payment stays pending until the order is delivered
//   - gateway methods: the payment is stored first, then the gateway is called outside
//     the transaction and its answer is recorded in a second one
type InitiatePaymentCommandHandler struct {
	uowFactory  ports.UnitOfWorkFactory
	gateway     ports.Gateway
	wallets     *ledger.Wallet
	methods     payment.Methods
	maxAttempts int
	publisher   ports.EventPublisher
	clock       ports.Clock
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewInitiatePaymentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	gateway ports.Gateway,
	wallets *ledger.Wallet,
	methods payment.Methods,
	maxAttempts int,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) InitiatePaymentCommandHandler {
	return InitiatePaymentCommandHandler{
		uowFactory:  uowFactory,
		gateway:     gateway,
		wallets:     wallets,
		methods:     methods,
		maxAttempts: maxAttempts,
		publisher:   publisher,
		clock:       clock,
		logger:      logger.With("component", "initiate_payment"),
		metrics:     m,
	}
}

func (h InitiatePaymentCommandHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (result InitiatePaymentResult, err error) {
	defer h.metrics.ObserveCommand("initiate_payment", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return InitiatePaymentResult{}, err
	}
	method, err := h.methods.Lookup(cmd.Method())
	if err != nil {
		return InitiatePaymentResult{}, err
	}

	var p *payment.Payment
	err = inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if o.Status() != order.Pending {
			return errs.NewInvalidTransitionError("order payment", o.Status(), order.Pending)
		}

		previous, err := uow.PaymentRepository().ListByOrder(ctx, o.ID())
		if err != nil {
			return err
		}
		if h.maxAttempts > 0 && len(previous) >= h.maxAttempts {
			return fmt.Errorf("%w: order %s already has %d payments", errs.ErrAttemptsExhausted, o.Number(), len(previous))
		}

		number := kernel.NewReference(payment.NumberPrefix, now, payment.NumberSuffixLength)
		p, err = payment.NewPayment(kernel.NewUUID(), number, o.ID(), o.CustomerID(), method, o.Total(), now)
		if err != nil {
			return err
		}
		if err = o.AttachPayment(p.ID(), method.Type.String()); err != nil {
			return err
		}

		if method.Type == payment.MethodWallet {
			if err = h.payFromWallet(ctx, uow, o, p, now); err != nil {
				return err
			}
		}

		if err = uow.PaymentRepository().Add(ctx, p); err != nil {
			return err
		}
		return uow.OrderRepository().Update(ctx, o)
	})
	if err != nil {
		return InitiatePaymentResult{}, err
	}

	if !method.Type.UsesGateway() {
		h.metrics.PaymentResult(method.Type.String(), p.Status().String())
		return InitiatePaymentResult{Payment: p}, nil
	}
	return h.startAtGateway(ctx, p)
}

func (h InitiatePaymentCommandHandler) payFromWallet(
	ctx context.Context,
	uow ports.UnitOfWork,
	o *order.Order,
	p *payment.Payment,
	now time.Time,
) error {
	orderID := o.ID()
	tx, err := h.wallets.Debit(ctx, uow, o.CustomerID(), wallet.Entry{
		Type:           wallet.TransactionPayment,
		Amount:         p.Total(),
		Description:    "payment " + p.Number() + " for order " + o.Number(),
		OrderID:        &orderID,
		IdempotencyKey: "payment:" + p.ID().String(),
	}, now)
	if err != nil {
		return err
	}
	ex := payment.Exchange{
		Request:  requestPayload(gatewayCall{Number: p.Number(), Amount: p.Total(), IdempotencyKey: tx.IdempotencyKey()}),
		Response: "wallet transaction " + tx.ID().String(),
	}
	if err = p.Succeed(tx.ID().String(), payment.OperationWalletDebit, ex, now); err != nil {
		return err
	}
	return o.MarkPaid(p.ID())
}

func (h InitiatePaymentCommandHandler) startAtGateway(ctx context.Context, p *payment.Payment) (InitiatePaymentResult, error) {
	req := ports.InitiatePaymentRequest{
		PaymentID:      p.ID(),
		PaymentNumber:  p.Number(),
		Amount:         p.Total(),
		Method:         p.Method(),
		IdempotencyKey: "initiate:" + p.ID().String(),
	}
	started := time.Now()
	res, gatewayErr := h.gateway.InitiatePayment(ctx, req)
	ex := payment.Exchange{
		Request: requestPayload(gatewayCall{
			Number:         req.PaymentNumber,
			Amount:         req.Amount,
			Method:         req.Method.String(),
			IdempotencyKey: req.IdempotencyKey,
		}),
		Response: res.RawResponse,
		Duration: time.Since(started),
	}

	var updated *payment.Payment
	err := inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		current, err := uow.PaymentRepository().Get(ctx, p.ID())
		if err != nil {
			return err
		}
		updated = current
		if current.Status() != payment.StatusPending {
			// a callback already settled it
			current.RecordAttempt(payment.OperationInitiate, ex, failureOf(gatewayErr), now)
			return uow.PaymentRepository().Update(ctx, current)
		}

		if gatewayErr == nil {
			if err = current.StartProcessing(res.GatewayRef, ex, now); err != nil {
				return err
			}
			return uow.PaymentRepository().Update(ctx, current)
		}

		if err = current.Fail(GatewayUnavailableCode, gatewayErr.Error(), payment.OperationInitiate, ex, now); err != nil {
			return err
		}
		if err = uow.PaymentRepository().Update(ctx, current); err != nil {
			return err
		}
		o, err := uow.OrderRepository().Get(ctx, current.OrderID())
		if err != nil {
			return err
		}
		if err = o.MarkPaymentFailed(current.ID()); err != nil {
			return err
		}
		return uow.OrderRepository().Update(ctx, o)
	})
	if err != nil {
		return InitiatePaymentResult{}, err
	}

	h.metrics.PaymentResult(updated.Method().String(), updated.Status().String())
	if gatewayErr != nil {
		h.logger.ErrorContext(ctx, "gateway did not accept payment",
			"payment_id", updated.ID().String(),
			"order_id", updated.OrderID().String(),
			"error", gatewayErr)
		return InitiatePaymentResult{Payment: updated}, errs.NewGatewayError("initiate_payment", GatewayUnavailableCode, gatewayErr)
	}
	return InitiatePaymentResult{Payment: updated, RedirectToken: res.RedirectToken}, nil
}

// CapturePaymentCommandHandler applies gateway callbacks. A callback for a payment
// that is no longer open is acknowledged without any effect.
type CapturePaymentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewCapturePaymentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) CapturePaymentCommandHandler {
	return CapturePaymentCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "capture_payment"),
		metrics:    m,
	}
}

func (h CapturePaymentCommandHandler) Handle(ctx context.Context, cmd CapturePaymentCommand) (captured *payment.Payment, err error) {
	defer h.metrics.ObserveCommand("capture_payment", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return nil, err
	}
	callback := cmd.Callback()

	changed := false
	err = inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		p, err := uow.PaymentRepository().GetByGatewayRef(ctx, callback.GatewayRef)
		if err != nil {
			return err
		}
		captured = p
		if !p.Status().IsOpen() {
			h.logger.InfoContext(ctx, "callback for settled payment ignored",
				"payment_id", p.ID().String(),
				"gateway_ref", callback.GatewayRef,
				"status", p.Status().String(),
				"callback_status", string(callback.Status))
			return nil
		}

		o, err := uow.OrderRepository().Get(ctx, p.OrderID())
		if err != nil {
			return err
		}

		ex := payment.Exchange{Response: callback.RawPayload}
		if callback.Status == ports.CallbackSuccess {
			if err = p.Succeed(callback.GatewayPaymentID, payment.OperationCallback, ex, now); err != nil {
				return err
			}
			err = o.MarkPaid(p.ID())
		} else {
			if err = p.Fail(callback.FailureCode, callback.FailureReason, payment.OperationCallback, ex, now); err != nil {
				return err
			}
			err = o.MarkPaymentFailed(p.ID())
		}
		if err != nil {
			return err
		}

		if err = uow.PaymentRepository().Update(ctx, p); err != nil {
			return err
		}
		changed = true
		return uow.OrderRepository().Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		h.metrics.PaymentResult(captured.Method().String(), captured.Status().String())
	}
	return captured, nil
}

// RefundPaymentCommandHandler returns money of a captured payment.
//
// Wallet and cash payments are refunded to the customer's wallet in one transaction.
// Gateway payments reserve the amount on the payment and record an initiated refund
// first, so concurrent refunds can never exceed what was captured, then call the
// gateway and record its answer. A rejected refund releases the reserved amount.
type RefundPaymentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	gateway    ports.Gateway
	wallets    *ledger.Wallet
	publisher  ports.EventPublisher
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewRefundPaymentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	gateway ports.Gateway,
	wallets *ledger.Wallet,
	publisher ports.EventPublisher,
	clock ports.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) RefundPaymentCommandHandler {
	return RefundPaymentCommandHandler{
		uowFactory: uowFactory,
		gateway:    gateway,
		wallets:    wallets,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With("component", "refund_payment"),
		metrics:    m,
	}
}

func (h RefundPaymentCommandHandler) Handle(ctx context.Context, cmd RefundPaymentCommand) (refund *payment.Refund, err error) {
	defer h.metrics.ObserveCommand("refund_payment", time.Now(), &err)

	if err = cmd.Validate(); err != nil {
		return nil, err
	}

	var gatewayRef string
	err = inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		p, err := uow.PaymentRepository().Get(ctx, cmd.PaymentID())
		if err != nil {
			return err
		}
		number := kernel.NewReference(payment.RefundNumberPrefix, now, payment.RefundNumberSuffixLength)
		refund, err = payment.NewRefund(kernel.NewUUID(), number, p, cmd.Amount(), cmd.Reason(), cmd.Actor(), now)
		if err != nil {
			return err
		}
		if err = p.ReserveRefund(cmd.Amount()); err != nil {
			return err
		}

		if refund.Destination() == payment.DestinationWallet {
			if err = h.refundToWallet(ctx, uow, p, refund, now); err != nil {
				return err
			}
		}

		if err = uow.PaymentRepository().AddRefund(ctx, refund); err != nil {
			return err
		}
		gatewayRef = p.GatewayRef()
		return uow.PaymentRepository().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if refund.Destination() == payment.DestinationWallet {
		h.metrics.Refund(refund.Destination().String(), refund.Status().String())
		return refund, nil
	}
	return h.refundAtGateway(ctx, refund, gatewayRef)
}

func (h RefundPaymentCommandHandler) refundToWallet(
	ctx context.Context,
	uow ports.UnitOfWork,
	p *payment.Payment,
	refund *payment.Refund,
	now time.Time,
) error {
	orderID, refundID := p.OrderID(), refund.ID()
	entry := wallet.Entry{
		Type:           wallet.TransactionRefund,
		Amount:         refund.Amount(),
		Description:    "refund " + refund.Number() + " of payment " + p.Number(),
		OrderID:        &orderID,
		RefundID:       &refundID,
		IdempotencyKey: "refund:" + refundID.String(),
	}
	tx, err := h.wallets.Credit(ctx, uow, p.CustomerID(), entry, now)
	if err != nil {
		return err
	}
	if err = refund.Complete("", p.FullyRefunded(), now); err != nil {
		return err
	}
	p.RecordAttempt(payment.OperationRefund, payment.Exchange{
		Request:  requestPayload(gatewayCall{Number: refund.Number(), Amount: entry.Amount, IdempotencyKey: entry.IdempotencyKey}),
		Response: "wallet transaction " + tx.ID().String(),
	}, "", now)
	return h.applyToOrder(ctx, uow, p)
}

func (h RefundPaymentCommandHandler) refundAtGateway(
	ctx context.Context,
	refund *payment.Refund,
	gatewayRef string,
) (*payment.Refund, error) {
	req := ports.GatewayRefundRequest{
		GatewayRef:     gatewayRef,
		RefundNumber:   refund.Number(),
		Amount:         refund.Amount(),
		IdempotencyKey: "refund:" + refund.ID().String(),
	}
	started := time.Now()
	res, gatewayErr := h.gateway.Refund(ctx, req)
	ex := payment.Exchange{
		Request: requestPayload(gatewayCall{
			Number:         req.RefundNumber,
			GatewayRef:     req.GatewayRef,
			Amount:         req.Amount,
			IdempotencyKey: req.IdempotencyKey,
		}),
		Response: res.RawResponse,
		Duration: time.Since(started),
	}
	if gatewayErr == nil && !res.Succeeded {
		gatewayErr = errs.NewGatewayError("refund", res.FailureCode, nil)
	}

	var updated *payment.Refund
	err := inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		now := h.clock.Now()

		p, err := uow.PaymentRepository().Get(ctx, refund.PaymentID())
		if err != nil {
			return err
		}
		updated, err = uow.PaymentRepository().GetRefund(ctx, refund.ID())
		if err != nil {
			return err
		}

		if gatewayErr != nil {
			if err = updated.Fail(gatewayErr.Error(), now); err != nil {
				return err
			}
			if err = p.ReleaseRefund(updated.Amount()); err != nil {
				return err
			}
		} else {
			if err = updated.Complete(res.RefundRef, p.FullyRefunded(), now); err != nil {
				return err
			}
			if err = h.applyToOrder(ctx, uow, p); err != nil {
				return err
			}
		}

		p.RecordAttempt(payment.OperationRefund, ex, failureOf(gatewayErr), now)

		if err = uow.PaymentRepository().UpdateRefund(ctx, updated); err != nil {
			return err
		}
		return uow.PaymentRepository().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Refund(updated.Destination().String(), updated.Status().String())
	if gatewayErr != nil {
		h.logger.ErrorContext(ctx, "gateway refund failed",
			"refund_id", updated.ID().String(),
			"payment_id", updated.PaymentID().String(),
			"error", gatewayErr)
		var gwErr *errs.GatewayError
		if !errors.As(gatewayErr, &gwErr) {
			gatewayErr = errs.NewGatewayError("refund", "", gatewayErr)
		}
		return updated, gatewayErr
	}
	return updated, nil
}

// applyToOrder moves the order's payment status. Payments that are no longer the
// order's active payment, such as a late capture on a cancelled order, leave it alone.
func (h RefundPaymentCommandHandler) applyToOrder(ctx context.Context, uow ports.UnitOfWork, p *payment.Payment) error {
	o, err := uow.OrderRepository().Get(ctx, p.OrderID())
	if err != nil {
		return err
	}
	active := o.ActivePaymentID()
	if active == nil || !active.IsEqual(p.ID()) || !o.PaymentStatus().IsSettled() {
		return nil
	}
	if err = o.ApplyRefund(p.FullyRefunded()); err != nil {
		return err
	}
	return uow.OrderRepository().Update(ctx, o)
}

// CancelPendingPaymentCommandHandler cancels the pending payments of an order. Payments
// already at the gateway stay open: if they are captured later, the coordinator
// refunds them.
type CancelPendingPaymentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
}

func NewCancelPendingPaymentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
) CancelPendingPaymentCommandHandler {
	return CancelPendingPaymentCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock}
}

func (h CancelPendingPaymentCommandHandler) Handle(ctx context.Context, cmd CancelPendingPaymentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		payments, err := uow.PaymentRepository().ListByOrder(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}

		detached := false
		for _, p := range payments {
			if p.Status() != payment.StatusPending {
				continue
			}
			if err = p.Cancel(cmd.Reason(), h.clock.Now()); err != nil {
				return err
			}
			if err = uow.PaymentRepository().Update(ctx, p); err != nil {
				return err
			}
			o.DetachPayment(p.ID())
			detached = true
		}
		if !detached {
			return nil
		}
		return uow.OrderRepository().Update(ctx, o)
	})
}

// CollectCashPaymentCommandHandler marks the pending cash-on-delivery payment of an
// order as collected.
type CollectCashPaymentCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	publisher  ports.EventPublisher
	clock      ports.Clock
	metrics    *metrics.Metrics
}

func NewCollectCashPaymentCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	publisher ports.EventPublisher,
	clock ports.Clock,
	m *metrics.Metrics,
) CollectCashPaymentCommandHandler {
	return CollectCashPaymentCommandHandler{uowFactory: uowFactory, publisher: publisher, clock: clock, metrics: m}
}

func (h CollectCashPaymentCommandHandler) Handle(ctx context.Context, cmd CollectCashPaymentCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inTransaction(ctx, h.uowFactory, h.publisher, func(uow ports.UnitOfWork) error {
		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if o.PaymentMethod() != order.CashOnDeliveryMethod || o.ActivePaymentID() == nil {
			return nil
		}

		p, err := uow.PaymentRepository().Get(ctx, *o.ActivePaymentID())
		if err != nil {
			return err
		}
		if p.Status() != payment.StatusPending {
			return nil
		}
		ex := payment.Exchange{Response: "cash collected on delivery"}
		if err = p.Succeed("", payment.OperationCashCollect, ex, h.clock.Now()); err != nil {
			return err
		}
		if err = o.MarkPaid(p.ID()); err != nil {
			return err
		}
		if err = uow.PaymentRepository().Update(ctx, p); err != nil {
			return err
		}
		h.metrics.PaymentResult(p.Method().String(), p.Status().String())
		return uow.OrderRepository().Update(ctx, o)
	})
}

// gatewayCall is the request side of an attempt as it is kept in the attempt log.
type gatewayCall struct {
	Number         string          `json:"number"`
	GatewayRef     string          `json:"gateway_ref,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func requestPayload(call gatewayCall) string {
	raw, err := json.Marshal(call)
	if err != nil {
		return ""
	}
	return string(raw)
}

func failureOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
