package http

import (
	"log/slog"
	"net/http"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handlers are the use cases exposed over HTTP. GetActiveOrders is optional; the
// store work queue is only served when it is set.
type Handlers struct {
	CreateOrder       commands.CreateOrderCommandHandler
	AdvanceOrder      commands.AdvanceOrderCommandHandler
	CancelOrder       commands.CancelOrderCommandHandler
	InitiatePayment   commands.InitiatePaymentCommandHandler
	CapturePayment    commands.CapturePaymentCommandHandler
	RefundPayment     commands.RefundPaymentCommandHandler
	RegisterAgent     commands.RegisterAgentCommandHandler
	ChangeAgentStatus commands.ChangeAgentStatusCommandHandler
	RespondAssignment commands.RespondAssignmentCommandHandler
	RecordLocation    commands.RecordLocationCommandHandler
	CompleteLeg       commands.CompleteLegCommandHandler
	FailAssignment    commands.FailAssignmentCommandHandler
	RateAssignment    commands.RateAssignmentCommandHandler
	Restock           commands.RestockCommandHandler
	CreditWallet      commands.CreditWalletCommandHandler

	GetOrder           queries.GetOrderQueryHandler
	GetOrderHistory    queries.GetOrderHistoryQueryHandler
	GetAssignment      queries.GetAssignmentQueryHandler
	GetWalletStatement queries.GetWalletStatementQueryHandler
	GetActiveOrders    *queries.GetActiveOrdersQueryHandler

	Carts ports.CartSource
}

// Server translates HTTP requests into commands and queries.
type Server struct {
	h      Handlers
	clock  ports.Clock
	logger *slog.Logger
}

func NewServer(handlers Handlers, clock ports.Clock, logger *slog.Logger) *Server {
	return &Server{h: handlers, clock: clock, logger: logger}
}

// Register mounts every route on e. gatherer backs /metrics; nil serves the
// default registry.
func (s *Server) Register(e *echo.Echo, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/health", s.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	e.PUT("/carts/:customerId/:storeId", s.SaveCart)

	e.POST("/orders", s.CreateOrder)
	e.GET("/orders/:id", s.GetOrder)
	e.GET("/orders/:id/history", s.GetOrderHistory)
	e.POST("/orders/:id/advance", s.AdvanceOrder)
	e.POST("/orders/:id/cancel", s.CancelOrder)
	e.POST("/orders/:id/payments", s.InitiatePayment)
	if s.h.GetActiveOrders != nil {
		e.GET("/stores/:id/orders", s.GetActiveOrders)
	}

	e.POST("/payments/callback", s.PaymentCallback)
	e.POST("/payments/:id/refunds", s.RefundPayment)

	e.POST("/agents", s.RegisterAgent)
	e.POST("/agents/:id/status", s.ChangeAgentStatus)

	e.GET("/assignments/:id", s.GetAssignment)
	e.POST("/assignments/:id/respond", s.RespondAssignment)
	e.POST("/assignments/:id/location", s.RecordLocation)
	e.POST("/assignments/:id/legs", s.CompleteLeg)
	e.POST("/assignments/:id/fail", s.FailAssignment)
	e.POST("/assignments/:id/rating", s.RateAssignment)

	e.POST("/stock/:storeProductId/restock", s.Restock)

	e.GET("/wallets/:customerId", s.GetWalletStatement)
	e.POST("/wallets/:customerId/credit", s.CreditWallet)
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// SaveCart handles PUT /carts/:customerId/:storeId and replaces the active cart.
func (s *Server) SaveCart(c echo.Context) error {
	customerID, err := pathUUID(c, "customerId")
	if err != nil {
		return fail(c, s.logger, err)
	}
	storeID, err := pathUUID(c, "storeId")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req SaveCartRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cart, err := req.toCart(customerID, storeID)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.Carts.Save(c.Request().Context(), cart); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateOrder handles POST /orders: snapshot the cart, reserve stock, create the order.
func (s *Server) CreateOrder(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req CreateOrderRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	customerID, err := kernel.UUIDFromString(req.CustomerID)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("customerId", err))
	}
	storeID, err := kernel.UUIDFromString(req.StoreID)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("storeId", err))
	}

	cmd, err := commands.NewCreateOrderCommand(customerID, storeID, actor)
	if err != nil {
		return fail(c, s.logger, err)
	}
	created, err := s.h.CreateOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusCreated, toOrder(created))
}

func (s *Server) GetOrder(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	query, err := queries.NewGetOrderQuery(id)
	if err != nil {
		return fail(c, s.logger, err)
	}
	resp, err := s.h.GetOrder.Handle(c.Request().Context(), query)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toOrderDetails(resp))
}

func (s *Server) GetOrderHistory(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	query, err := queries.NewGetOrderHistoryQuery(id)
	if err != nil {
		return fail(c, s.logger, err)
	}
	entries, err := s.h.GetOrderHistory.Handle(c.Request().Context(), query)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toHistory(entries))
}

// GetActiveOrders handles GET /stores/:id/orders, the store operator's work queue.
func (s *Server) GetActiveOrders(c echo.Context) error {
	storeID, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	query, err := queries.NewGetActiveOrdersQuery(storeID)
	if err != nil {
		return fail(c, s.logger, err)
	}
	rows, err := s.h.GetActiveOrders.Handle(c.Request().Context(), query)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toActiveOrders(rows))
}

func (s *Server) AdvanceOrder(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	actor, err := actorFrom(c)
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req AdvanceOrderRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		return fail(c, s.logger, err)
	}

	cmd, err := commands.NewAdvanceOrderCommand(id, target, actor, req.Note, req.Override)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.AdvanceOrder.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) CancelOrder(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	actor, err := actorFrom(c)
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req ReasonRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	cmd, err := commands.NewCancelOrderCommand(id, actor, req.Reason)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.CancelOrder.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// InitiatePayment handles POST /orders/:id/payments. A gateway payment answers with
// the redirect token the client hands to the gateway.
func (s *Server) InitiatePayment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	actor, err := actorFrom(c)
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req InitiatePaymentRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	method, err := payment.ParseMethodType(req.Method)
	if err != nil {
		return fail(c, s.logger, err)
	}

	cmd, err := commands.NewInitiatePaymentCommand(id, method, actor)
	if err != nil {
		return fail(c, s.logger, err)
	}
	result, err := s.h.InitiatePayment.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusCreated, PaymentInitiated{
		Payment:       toPayment(result.Payment),
		RedirectToken: result.RedirectToken,
	})
}

// PaymentCallback handles POST /payments/callback. Repeated callbacks answer 200
// with the payment as it stands.
func (s *Server) PaymentCallback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	cmd, err := commands.NewCapturePaymentCommand(ports.GatewayCallback{
		GatewayRef:       req.GatewayRef,
		Status:           ports.CallbackStatus(req.Status),
		GatewayPaymentID: req.GatewayPaymentID,
		FailureCode:      req.FailureCode,
		FailureReason:    req.FailureReason,
	})
	if err != nil {
		return fail(c, s.logger, err)
	}
	captured, err := s.h.CapturePayment.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toPayment(captured))
}

func (s *Server) RefundPayment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	actor, err := actorFrom(c)
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req RefundRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("amount", err))
	}

	cmd, err := commands.NewRefundPaymentCommand(id, amount, req.Reason, actor)
	if err != nil {
		return fail(c, s.logger, err)
	}
	refund, err := s.h.RefundPayment.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusCreated, toRefund(refund))
}

func (s *Server) RegisterAgent(c echo.Context) error {
	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	storeID, err := kernel.UUIDFromString(req.StoreID)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("storeId", err))
	}

	cmd, err := commands.NewRegisterAgentCommand(storeID, req.Code, req.Name)
	if err != nil {
		return fail(c, s.logger, err)
	}
	agent, err := s.h.RegisterAgent.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusCreated, toAgent(agent))
}

func (s *Server) ChangeAgentStatus(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req AgentStatusRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	status, err := delivery.ParseAgentStatus(req.Status)
	if err != nil {
		return fail(c, s.logger, err)
	}

	cmd, err := commands.NewChangeAgentStatusCommand(id, status)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.ChangeAgentStatus.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) GetAssignment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	resp, err := s.h.GetAssignment.Handle(c.Request().Context(), id)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toAssignmentDetails(resp))
}

func (s *Server) RespondAssignment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req RespondAssignmentRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	agentID, err := kernel.UUIDFromString(req.AgentID)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("agentId", err))
	}

	cmd, err := commands.NewRespondAssignmentCommand(id, agentID, req.Accept, req.Reason)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.RespondAssignment.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) RecordLocation(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req LocationRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	point, err := kernel.NewGeoPoint(req.Lat, req.Lng)
	if err != nil {
		return fail(c, s.logger, err)
	}

	cmd, err := commands.NewRecordLocationCommand(id, point, req.Accuracy, req.Speed, req.Bearing)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.RecordLocation.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// CompleteLeg handles POST /assignments/:id/legs. Delivering requires a proof body.
func (s *Server) CompleteLeg(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req CompleteLegRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	agentID, err := kernel.UUIDFromString(req.AgentID)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("agentId", err))
	}
	target, err := delivery.ParseAssignmentStatus(req.Status)
	if err != nil {
		return fail(c, s.logger, err)
	}
	proof, err := req.Proof.toDomain(s.clock.Now())
	if err != nil {
		return fail(c, s.logger, err)
	}

	cmd, err := commands.NewCompleteLegCommand(id, agentID, target, proof)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.CompleteLeg.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) FailAssignment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req ReasonRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	cmd, err := commands.NewFailAssignmentCommand(id, req.Reason)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.FailAssignment.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) RateAssignment(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req RatingRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	cmd, err := commands.NewRateAssignmentCommand(id, req.Rating, req.Feedback)
	if err != nil {
		return fail(c, s.logger, err)
	}
	if err = s.h.RateAssignment.Handle(c.Request().Context(), cmd); err != nil {
		return fail(c, s.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) Restock(c echo.Context) error {
	id, err := pathUUID(c, "storeProductId")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req RestockRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	cmd, err := commands.NewRestockCommand(id, req.Quantity)
	if err != nil {
		return fail(c, s.logger, err)
	}
	stock, err := s.h.Restock.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toStock(stock))
}

func (s *Server) GetWalletStatement(c echo.Context) error {
	customerID, err := pathUUID(c, "customerId")
	if err != nil {
		return fail(c, s.logger, err)
	}
	query, err := queries.NewGetWalletStatementQuery(customerID)
	if err != nil {
		return fail(c, s.logger, err)
	}
	resp, err := s.h.GetWalletStatement.Handle(c.Request().Context(), query)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusOK, toWalletStatement(customerID, resp))
}

func (s *Server) CreditWallet(c echo.Context) error {
	customerID, err := pathUUID(c, "customerId")
	if err != nil {
		return fail(c, s.logger, err)
	}
	var req CreditWalletRequest
	if err = c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fail(c, s.logger, errs.NewValueIsInvalidErrorWithCause("amount", err))
	}

	cmd, err := commands.NewCreditWalletCommand(customerID, amount, req.Description, req.IdempotencyKey)
	if err != nil {
		return fail(c, s.logger, err)
	}
	tx, err := s.h.CreditWallet.Handle(c.Request().Context(), cmd)
	if err != nil {
		return fail(c, s.logger, err)
	}
	return c.JSON(http.StatusCreated, toWalletTransaction(tx))
}
