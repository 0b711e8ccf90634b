package http

import (
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// actorFrom reads the caller from the actor headers. Authentication happens in front
// of this service; the headers are trusted as given.
func actorFrom(c echo.Context) (kernel.Actor, error) {
	id := strings.TrimSpace(c.Request().Header.Get(headerActorID))
	if id == "" {
		return kernel.Actor{}, errs.NewValueIsRequiredError(headerActorID)
	}
	role, err := kernel.ParseActorRole(c.Request().Header.Get(headerActorRole))
	if err != nil {
		return kernel.Actor{}, err
	}
	return kernel.NewActor(id, role)
}

func pathUUID(c echo.Context, name string) (kernel.UUID, error) {
	id, err := kernel.UUIDFromString(c.Param(name))
	if err != nil {
		return kernel.UUID{}, errs.NewValueIsInvalidErrorWithCause(name, err)
	}
	return id, nil
}

type CreateOrderRequest struct {
	CustomerID string `json:"customerId"`
	StoreID    string `json:"storeId"`
}

type SaveCartRequest struct {
	Address             AddressBody    `json:"address"`
	Items               []CartItemBody `json:"items"`
	Discount            string         `json:"discount,omitempty"`
	SpecialInstructions string         `json:"specialInstructions,omitempty"`
}

type AddressBody struct {
	Line1 string   `json:"line1"`
	Line2 string   `json:"line2,omitempty"`
	City  string   `json:"city"`
	Zip   string   `json:"zip"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

type CartItemBody struct {
	StoreProductID      string      `json:"storeProductId"`
	Quantity            int         `json:"quantity"`
	AddOns              []AddOnBody `json:"addOns,omitempty"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
}

type AddOnBody struct {
	IngredientID string `json:"ingredientId"`
	Quantity     int    `json:"quantity"`
}

func (r SaveCartRequest) toCart(customerID, storeID kernel.UUID) (ports.Cart, error) {
	discount := decimal.Zero
	if r.Discount != "" {
		d, err := decimal.NewFromString(r.Discount)
		if err != nil {
			return ports.Cart{}, errs.NewValueIsInvalidErrorWithCause("discount", err)
		}
		discount = d
	}

	items := make([]ports.CartItem, 0, len(r.Items))
	for _, item := range r.Items {
		spID, err := kernel.UUIDFromString(item.StoreProductID)
		if err != nil {
			return ports.Cart{}, errs.NewValueIsInvalidErrorWithCause("storeProductId", err)
		}
		addOns := make([]ports.CartAddOn, 0, len(item.AddOns))
		for _, a := range item.AddOns {
			ingredientID, err := kernel.UUIDFromString(a.IngredientID)
			if err != nil {
				return ports.Cart{}, errs.NewValueIsInvalidErrorWithCause("ingredientId", err)
			}
			addOns = append(addOns, ports.CartAddOn{IngredientID: ingredientID, Quantity: a.Quantity})
		}
		items = append(items, ports.CartItem{
			StoreProductID:      spID,
			Quantity:            item.Quantity,
			AddOns:              addOns,
			SpecialInstructions: item.SpecialInstructions,
		})
	}

	return ports.Cart{
		CustomerID: customerID,
		StoreID:    storeID,
		Address: ports.DeliveryAddress{
			Line1: r.Address.Line1,
			Line2: r.Address.Line2,
			City:  r.Address.City,
			Zip:   r.Address.Zip,
			Lat:   r.Address.Lat,
			Lng:   r.Address.Lng,
		},
		Items:               items,
		Discount:            discount,
		SpecialInstructions: r.SpecialInstructions,
	}, nil
}

type AdvanceOrderRequest struct {
	Status   string `json:"status"`
	Note     string `json:"note,omitempty"`
	Override bool   `json:"override,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type InitiatePaymentRequest struct {
	Method string `json:"method"`
}

type PaymentCallbackRequest struct {
	GatewayRef       string `json:"gatewayRef"`
	Status           string `json:"status"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
	FailureCode      string `json:"failureCode,omitempty"`
	FailureReason    string `json:"failureReason,omitempty"`
}

type RefundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type RegisterAgentRequest struct {
	StoreID string `json:"storeId"`
	Code    string `json:"code"`
	Name    string `json:"name"`
}

type AgentStatusRequest struct {
	Status string `json:"status"`
}

type RespondAssignmentRequest struct {
	AgentID string `json:"agentId"`
	Accept  bool   `json:"accept"`
	Reason  string `json:"reason,omitempty"`
}

type LocationRequest struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Bearing  *float64 `json:"bearing,omitempty"`
}

type CompleteLegRequest struct {
	AgentID string     `json:"agentId"`
	Status  string     `json:"status"`
	Proof   *ProofBody `json:"proof,omitempty"`
}

type ProofBody struct {
	Method        string `json:"method"`
	PhotoRef      string `json:"photoRef,omitempty"`
	OTP           string `json:"otp,omitempty"`
	SignatureData string `json:"signatureData,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (p *ProofBody) toDomain(at time.Time) (*delivery.ProofOfDelivery, error) {
	if p == nil {
		return nil, nil
	}
	method, err := delivery.ParseProofMethod(p.Method)
	if err != nil {
		return nil, err
	}
	return &delivery.ProofOfDelivery{
		Method:        method,
		PhotoRef:      p.PhotoRef,
		OTP:           p.OTP,
		SignatureData: p.SignatureData,
		Notes:         p.Notes,
		CollectedAt:   at,
	}, nil
}

type RatingRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type CreditWalletRequest struct {
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotencyKey"`
}
