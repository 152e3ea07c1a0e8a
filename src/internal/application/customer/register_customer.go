package customer

import (
	"context"
	"errors"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// RegisterCustomer Use Case
// ===========================

// RegisterCustomerCommand 建立或更新顧客資料的指令（Input DTO）
//
// 由 customer.created / customer.updated 事件產生；
// 格式錯誤的 Email / 手機不阻擋寫入，以空值保存
type RegisterCustomerCommand struct {
	MerchantID merchant.MerchantID
	ExternalID string // 外部商務平台的顧客 ID
	Name       string
	Email      string
	Phone      string
}

// RegisterCustomerResult 結果（Output DTO）
type RegisterCustomerResult struct {
	CustomerID string
	ExternalID string
	Created    bool // false = 更新既有顧客
	Changed    bool
}

// RegisterCustomerUseCase 顧客資料 Upsert Use Case 接口
//
// 業務規則：
// 1. (merchant, externalID) 唯一
// 2. 已存在時只以非空欄位覆蓋
// 3. 積分帳戶不在此建立（由 Ledger Engine 負責）
type RegisterCustomerUseCase interface {
	Execute(ctx context.Context, cmd RegisterCustomerCommand) (*RegisterCustomerResult, error)
}

// RegisterCustomerUseCaseImpl 實作
type RegisterCustomerUseCaseImpl struct {
	customerRepo customer.CustomerRepository
	txManager    shared.TransactionManager
}

// NewRegisterCustomerUseCase 創建 RegisterCustomerUseCase 實例
func NewRegisterCustomerUseCase(
	customerRepo customer.CustomerRepository,
	txManager shared.TransactionManager,
) RegisterCustomerUseCase {
	return &RegisterCustomerUseCaseImpl{
		customerRepo: customerRepo,
		txManager:    txManager,
	}
}

// Execute 執行 Upsert
//
// 業務流程：
// 1. 驗證外部 ID
// 2. 在事務中：查詢 → 不存在則建立，存在則更新資料
// 3. 並發建立輸掉唯一約束時，重新執行一次（此時走更新路徑）
//
// 錯誤處理：
// - customer.ErrInvalidExternalCustomerID: 外部 ID 無效
// - 資料庫錯誤 → 返回原始錯誤
func (uc *RegisterCustomerUseCaseImpl) Execute(ctx context.Context, cmd RegisterCustomerCommand) (*RegisterCustomerResult, error) {
	if cmd.MerchantID.IsEmpty() {
		return nil, merchant.ErrInvalidMerchantID
	}
	externalID, err := customer.NewExternalCustomerID(cmd.ExternalID)
	if err != nil {
		return nil, err
	}
	profile := customer.Profile{Name: cmd.Name, Email: cmd.Email, Phone: cmd.Phone}

	result, err := uc.upsert(ctx, cmd.MerchantID, externalID, profile)
	if errors.Is(err, customer.ErrCustomerAlreadyExists) {
		result, err = uc.upsert(ctx, cmd.MerchantID, externalID, profile)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *RegisterCustomerUseCaseImpl) upsert(
	ctx context.Context,
	merchantID merchant.MerchantID,
	externalID customer.ExternalCustomerID,
	profile customer.Profile,
) (*RegisterCustomerResult, error) {
	var result *RegisterCustomerResult

	err := uc.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		existing, err := uc.customerRepo.FindByExternalID(tx, merchantID, externalID)
		if err != nil && !errors.Is(err, customer.ErrCustomerNotFound) {
			return err
		}

		// 已存在：更新資料（無變更時不寫入）
		if existing != nil {
			changed := existing.UpdateProfile(profile)
			if changed {
				if err := uc.customerRepo.Save(tx, existing); err != nil {
					return err
				}
			}
			result = newResult(existing, false, changed)
			return nil
		}

		created, err := customer.NewCustomer(merchantID, externalID, profile)
		if err != nil {
			return err
		}
		if err := uc.customerRepo.Save(tx, created); err != nil {
			return err
		}
		result = newResult(created, true, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newResult(c *customer.Customer, created, changed bool) *RegisterCustomerResult {
	return &RegisterCustomerResult{
		CustomerID: c.CustomerID().String(),
		ExternalID: c.ExternalID().String(),
		Created:    created,
		Changed:    changed,
	}
}
