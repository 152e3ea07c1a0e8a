package customer

import (
	"context"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
)

// GetCustomerQuery 以外部 ID 查詢顧客資料
type GetCustomerQuery struct {
	MerchantID merchant.MerchantID
	ExternalID string
}

// CustomerView 顧客資料
type CustomerView struct {
	CustomerID string
	ExternalID string
	Name       string
	Email      string
	Phone      string
}

// GetCustomerUseCase 查詢顧客資料 Use Case
type GetCustomerUseCase struct {
	customerRepo customer.CustomerRepository
}

func NewGetCustomerUseCase(repo customer.CustomerRepository) *GetCustomerUseCase {
	return &GetCustomerUseCase{customerRepo: repo}
}

// Execute 查詢；不存在時返回 customer.ErrCustomerNotFound
func (uc *GetCustomerUseCase) Execute(ctx context.Context, query GetCustomerQuery) (*CustomerView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	externalID, err := customer.NewExternalCustomerID(query.ExternalID)
	if err != nil {
		return nil, err
	}
	c, err := uc.customerRepo.FindByExternalID(nil, query.MerchantID, externalID)
	if err != nil {
		return nil, err
	}
	return &CustomerView{
		CustomerID: c.CustomerID().String(),
		ExternalID: c.ExternalID().String(),
		Name:       c.Name(),
		Email:      c.Email(),
		Phone:      c.Phone().String(),
	}, nil
}
