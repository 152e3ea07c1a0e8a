package points

import (
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/shopspring/decimal"
)

// ===========================
// GORM Models
// ===========================

// AccountGORM 積分帳戶資料表模型
//
// 設計原則：
// - 僅用於 Infrastructure Layer（不暴露給 Domain Layer）
// - 使用 GORM 標籤定義資料庫結構
// - 與 Domain Account 聚合分離（Mapper 轉換）
//
// 資料庫約束：
// - account_id: 主鍵（UUID）
// - (merchant_id, customer_ref): 唯一索引（每位顧客在每個商家一個帳戶）
// - (merchant_id, referral_code): 唯一索引
// - current_points = total_points - used_points >= 0（CHECK 約束 + 載入時驗證）
// - version: 樂觀鎖
type AccountGORM struct {
	// 識別欄位
	AccountID    string `gorm:"column:account_id;type:varchar(36);primaryKey"`
	MerchantID   string `gorm:"column:merchant_id;type:varchar(36);not null;uniqueIndex:idx_accounts_merchant_customer,priority:1;uniqueIndex:idx_accounts_merchant_referral,priority:1"`
	CustomerRef  string `gorm:"column:customer_ref;type:varchar(128);not null;uniqueIndex:idx_accounts_merchant_customer,priority:2"`
	ReferralCode string `gorm:"column:referral_code;type:varchar(16);not null;uniqueIndex:idx_accounts_merchant_referral,priority:2"`

	// 積分數據
	TotalPoints   int `gorm:"column:total_points;not null;default:0;check:total_points >= 0"`
	UsedPoints    int `gorm:"column:used_points;not null;default:0;check:used_points >= 0"`
	CurrentPoints int `gorm:"column:current_points;not null;default:0;check:current_points >= 0"`

	TierID  *string `gorm:"column:tier_id;type:varchar(36);index"`
	Version int     `gorm:"column:version;not null;default:1"`

	// 審計欄位
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定資料表名稱
func (AccountGORM) TableName() string {
	return "loyalty_accounts"
}

// LedgerEntryGORM 帳本交易資料表模型（Append-only）
//
// 資料庫約束：
// - (account_id, kind, correlation): 唯一索引，冪等性的最終防線
//   correlation 為 NULL 時不受約束（NULL 彼此不相等）
// - (swept_at, expires_at): 過期掃描索引
type LedgerEntryGORM struct {
	TransactionID string  `gorm:"column:transaction_id;type:varchar(36);primaryKey"`
	AccountID     string  `gorm:"column:account_id;type:varchar(36);not null;uniqueIndex:idx_ledger_idempotency,priority:1;index:idx_ledger_account_created,priority:1"`
	MerchantID    string  `gorm:"column:merchant_id;type:varchar(36);not null;index:idx_ledger_merchant_correlation,priority:1"`
	Kind          string  `gorm:"column:kind;type:varchar(32);not null;uniqueIndex:idx_ledger_idempotency,priority:2;index:idx_ledger_merchant_correlation,priority:2"`
	Amount        int     `gorm:"column:amount;not null;check:amount <> 0"`
	Description   string  `gorm:"column:description;type:varchar(255)"`
	Correlation   *string `gorm:"column:correlation;type:varchar(128);uniqueIndex:idx_ledger_idempotency,priority:3;index:idx_ledger_merchant_correlation,priority:3"`

	// 版本化附加欄位
	MetadataVersion int              `gorm:"column:metadata_version;not null"`
	OrderAmount     *decimal.Decimal `gorm:"column:order_amount;type:numeric(18,4)"`
	ExpiresAt       *time.Time       `gorm:"column:expires_at;index:idx_ledger_expiry,priority:2"`

	// 過期處理標記（寫一次）
	SweptAt       *time.Time `gorm:"column:swept_at;index:idx_ledger_expiry,priority:1"`
	ExpiredPoints int        `gorm:"column:expired_points;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_ledger_account_created,priority:2"`
}

// TableName 指定資料表名稱
func (LedgerEntryGORM) TableName() string {
	return "loyalty_ledger_entries"
}

// ===========================
// Mapper Functions
// ===========================

// toDomain 將 GORM 模型轉換為 Domain 模型
//
// 轉換邏輯：
//   - 字串 ID → EntityID 值對象
//   - tier_id NULL → 零值 TierID（無等級）
//   - 不變條件由 ReconstructAccount 驗證（損壞資料返回 ErrInvariantViolation）
func (g *AccountGORM) toDomain() (*points.Account, error) {
	accountID, err := points.AccountIDFromString(g.AccountID)
	if err != nil {
		return nil, err
	}
	merchantID, err := merchant.MerchantIDFromString(g.MerchantID)
	if err != nil {
		return nil, err
	}

	var tierID tier.TierID
	if g.TierID != nil && *g.TierID != "" {
		tierID, err = tier.TierIDFromString(*g.TierID)
		if err != nil {
			return nil, err
		}
	}

	return points.ReconstructAccount(
		accountID,
		merchantID,
		g.CustomerRef,
		g.ReferralCode,
		g.TotalPoints,
		g.UsedPoints,
		g.CurrentPoints,
		tierID,
		g.Version,
		g.CreatedAt,
		g.UpdatedAt,
	)
}

// toAccountGORM 將 Domain 模型轉換為 GORM 模型
func toAccountGORM(account *points.Account) *AccountGORM {
	return &AccountGORM{
		AccountID:     account.AccountID().String(),
		MerchantID:    account.MerchantID().String(),
		CustomerRef:   account.CustomerRef(),
		ReferralCode:  account.ReferralCode(),
		TotalPoints:   account.TotalPoints().Value(),
		UsedPoints:    account.UsedPoints().Value(),
		CurrentPoints: account.CurrentPoints().Value(),
		TierID:        tierColumn(account.TierID()),
		Version:       account.Version(),
		CreatedAt:     account.CreatedAt().UTC(),
		UpdatedAt:     account.UpdatedAt().UTC(),
	}
}

func tierColumn(id tier.TierID) *string {
	if id.IsEmpty() {
		return nil
	}
	s := id.String()
	return &s
}

func (g *LedgerEntryGORM) toDomain() (*points.LedgerTransaction, error) {
	transactionID, err := points.TransactionIDFromString(g.TransactionID)
	if err != nil {
		return nil, err
	}
	accountID, err := points.AccountIDFromString(g.AccountID)
	if err != nil {
		return nil, err
	}
	merchantID, err := merchant.MerchantIDFromString(g.MerchantID)
	if err != nil {
		return nil, err
	}
	kind, err := points.ParseTransactionKind(g.Kind)
	if err != nil {
		return nil, points.ErrCorruptedTransaction.WithContext("transaction_id", g.TransactionID, "kind", g.Kind)
	}

	var correlation points.CorrelationRef
	if g.Correlation != nil {
		correlation, err = points.NewCorrelationRef(*g.Correlation)
		if err != nil {
			return nil, err
		}
	}

	return points.ReconstructLedgerTransaction(
		transactionID,
		accountID,
		merchantID,
		kind,
		g.Amount,
		g.Description,
		correlation,
		points.EarnDetails{OrderAmount: g.OrderAmount, ExpiresAt: g.ExpiresAt},
		g.SweptAt,
		g.ExpiredPoints,
		g.CreatedAt,
	)
}

func toLedgerEntryGORM(entry *points.LedgerTransaction) *LedgerEntryGORM {
	return &LedgerEntryGORM{
		TransactionID:   entry.TransactionID().String(),
		AccountID:       entry.AccountID().String(),
		MerchantID:      entry.MerchantID().String(),
		Kind:            entry.Kind().String(),
		Amount:          entry.Amount(),
		Description:     entry.Description(),
		Correlation:     entry.Correlation().Ptr(),
		MetadataVersion: points.MetadataVersion,
		OrderAmount:     entry.OrderAmount(),
		ExpiresAt:       utcPtr(entry.ExpiresAt()),
		SweptAt:         utcPtr(entry.SweptAt()),
		ExpiredPoints:   entry.ExpiredPoints(),
		CreatedAt:       entry.CreatedAt().UTC(),
	}
}

// utcPtr SQLite 以字串保存時間，統一 UTC 才能正確比較大小
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
