package queries

import (
	"context"
	"errors"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/guard"
)

var ErrGetWalletStatementQueryIsNotConstructed = errors.New(
	"GetWalletStatementQuery must be created via NewGetWalletStatementQuery constructor",
)

type GetWalletStatementQuery struct {
	customerID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetWalletStatementQuery(customerID kernel.UUID) (GetWalletStatementQuery, error) {
	if err := customerID.Validate(); err != nil {
		return GetWalletStatementQuery{}, err
	}
	return GetWalletStatementQuery{customerID: customerID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetWalletStatementQuery) Validate() error {
	return q.guard.Validate(ErrGetWalletStatementQueryIsNotConstructed)
}

func (q GetWalletStatementQuery) CustomerID() kernel.UUID { return q.customerID }

// GetWalletStatementQueryResponse is the wallet with its full log ordered by sequence.
type GetWalletStatementQueryResponse struct {
	Wallet       *wallet.Wallet
	Transactions []*wallet.Transaction
}

type GetWalletStatementQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewGetWalletStatementQueryHandler(uowFactory ports.UnitOfWorkFactory) GetWalletStatementQueryHandler {
	return GetWalletStatementQueryHandler{uowFactory: uowFactory}
}

func (h GetWalletStatementQueryHandler) Handle(
	ctx context.Context,
	query GetWalletStatementQuery,
) (GetWalletStatementQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetWalletStatementQueryResponse{}, err
	}

	var resp GetWalletStatementQueryResponse
	err := read(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		var err error
		if resp.Wallet, err = uow.WalletRepository().GetByCustomer(ctx, query.CustomerID()); err != nil {
			return err
		}
		resp.Transactions, err = uow.WalletRepository().Transactions(ctx, resp.Wallet.ID())
		return err
	})
	if err != nil {
		return GetWalletStatementQueryResponse{}, err
	}
	return resp, nil
}
