package points

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// Account Repository 介面
// ===========================

// AccountRepository 積分帳戶倉儲介面
//
// 設計原則：
// 1. 依賴倒置原則（DIP）：Domain Layer 定義介面，Infrastructure Layer 實作
// 2. 事務支持：使用 TransactionContext 封裝事務，避免基礎設施洩漏
// 3. 單一序列化點：帳戶列是每個帳戶唯一的鎖定對象
//
// 事務使用範例：
//
//	txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
//	    account, _ := repo.FindByIDForUpdate(tx, accountID)
//	    entry, _ := account.Deduct(kind, amount, description, correlation, now)
//	    if err := ledger.Append(tx, entry); err != nil {
//	        return err
//	    }
//	    return repo.Update(tx, account)
//	})
type AccountRepository interface {
	// Save 保存新帳戶
	// 錯誤：ErrAccountAlreadyExists（(merchant, customerRef) 或推薦碼重複）
	Save(ctx shared.TransactionContext, account *Account) error

	// Update 以樂觀鎖更新帳戶（WHERE version = ExpectedVersion）
	// 錯誤：ErrAccountNotFound / ErrConcurrentModification
	Update(ctx shared.TransactionContext, account *Account) error

	FindByID(ctx shared.TransactionContext, accountID AccountID) (*Account, error)

	// FindByIDForUpdate 在事務中讀取並鎖定帳戶列（ctx 必須 non-nil）
	FindByIDForUpdate(ctx shared.TransactionContext, accountID AccountID) (*Account, error)

	FindByMerchantCustomer(ctx shared.TransactionContext, merchantID merchant.MerchantID, customerRef string) (*Account, error)
	FindByReferralCode(ctx shared.TransactionContext, merchantID merchant.MerchantID, code string) (*Account, error)

	// ListByMerchant 分頁列出商家的帳戶（依建立時間新到舊）
	ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, offset, limit int) ([]*Account, int64, error)

	// ListIDsByMerchant 批次重新分類等級時使用
	ListIDsByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID) ([]AccountID, error)

	// TopByMerchant 依 totalPoints 由高到低列出前 limit 個帳戶
	TopByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, limit int) ([]*Account, error)

	// CountByTier 各等級的帳戶數，key 為等級 ID 字串；無等級的帳戶計在 ""
	CountByTier(ctx shared.TransactionContext, merchantID merchant.MerchantID) (map[string]int64, error)
}

// ===========================
// Ledger Repository 介面
// ===========================

// LedgerRepository 帳本交易倉儲介面（Append-only）
//
// 只有 Append 與 MarkSwept 兩種寫入；交易列永不更新金額、永不刪除
type LedgerRepository interface {
	// Append 寫入新交易
	// 錯誤：ErrDuplicateEvent（(account, kind, correlation) 唯一約束衝突）
	Append(ctx shared.TransactionContext, entry *LedgerTransaction) error

	// MarkSwept 寫入過期處理標記（WHERE swept_at IS NULL）
	// 錯誤：ErrAlreadySwept
	MarkSwept(ctx shared.TransactionContext, entry *LedgerTransaction) error

	FindByID(ctx shared.TransactionContext, id TransactionID) (*LedgerTransaction, error)
	FindByIDForUpdate(ctx shared.TransactionContext, id TransactionID) (*LedgerTransaction, error)

	// FindByCorrelation 冪等性查詢
	FindByCorrelation(ctx shared.TransactionContext, accountID AccountID, kind TransactionKind, correlation CorrelationRef) (*LedgerTransaction, error)

	// FindByMerchantCorrelation 訂單取消時依訂單 ID 找原始購物交易
	FindByMerchantCorrelation(ctx shared.TransactionContext, merchantID merchant.MerchantID, kind TransactionKind, correlation CorrelationRef) (*LedgerTransaction, error)

	// ListByAccount 分頁列出帳戶交易（新到舊）
	ListByAccount(ctx shared.TransactionContext, accountID AccountID, offset, limit int) ([]*LedgerTransaction, int64, error)

	// ListByMerchant 分頁列出商家的交易（新到舊）；filter 的零值欄位不篩選
	ListByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, filter LedgerFilter, offset, limit int) ([]*LedgerTransaction, int64, error)

	// SumByAccount 重放帳本：earned = Σ amount>0，used = Σ |amount<0|
	SumByAccount(ctx shared.TransactionContext, accountID AccountID) (earned int, used int, err error)

	// SumByMerchant 商家在 [from, to) 期間的 earned / used；零值時間代表不設界限
	SumByMerchant(ctx shared.TransactionContext, merchantID merchant.MerchantID, from, to time.Time) (earned int, used int, err error)

	// FindExpiryCandidates 到期且未處理的獲得交易，依 (expiresAt, createdAt, transactionID) 升序；
	// after 非 nil 時只返回排在 after 之後的交易
	FindExpiryCandidates(ctx shared.TransactionContext, now time.Time, after *ExpiryCursor, limit int) ([]*LedgerTransaction, error)
}

// LedgerFilter 商家交易列表的篩選條件
type LedgerFilter struct {
	AccountID AccountID       // 零值 = 所有帳戶
	Kind      TransactionKind // 空字串 = 所有類型
}

// ExpiryCursor 到期掃描的鍵集分頁位置
type ExpiryCursor struct {
	ExpiresAt     time.Time
	CreatedAt     time.Time
	TransactionID TransactionID
}

// CursorAt 以交易本身作為分頁位置；沒有到期時間時返回 nil
func CursorAt(t *LedgerTransaction) *ExpiryCursor {
	if t == nil || t.ExpiresAt() == nil {
		return nil
	}
	return &ExpiryCursor{
		ExpiresAt:     *t.ExpiresAt(),
		CreatedAt:     t.CreatedAt(),
		TransactionID: t.TransactionID(),
	}
}
