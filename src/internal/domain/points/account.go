package points

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// MaxCustomerRefLength 外部顧客識別碼最大長度
const MaxCustomerRefLength = 128

// ===========================
// Account 聚合根
// ===========================

// Account 積分帳戶聚合根（每個商家的每位顧客一個）
//
// 設計原則：
// 1. 輕量級聚合：不包含無界集合（交易記錄儲存在獨立表）
// 2. 不變條件：currentPoints == totalPoints - usedPoints >= 0
// 3. 事件驅動：所有狀態變更都產生領域事件，提交後由 PullEvents 取出
// 4. 每個命令方法返回對應的 LedgerTransaction，由調用者在同一事務中寫入
//
// 業務不變條件：
// - totalPoints 只增不減（終身累積）
// - usedPoints 只增不減（扣減、兌換、過期的累計）
// - tierID 永遠是 totalPoints 在當前等級目錄下的分類結果
type Account struct {
	accountID    AccountID
	merchantID   merchant.MerchantID
	customerRef  string
	referralCode string

	totalPoints   PointsAmount
	usedPoints    PointsAmount
	currentPoints PointsAmount

	tierID tier.TierID // 零值 = 無等級

	// 樂觀鎖：loadedVersion 為讀取時的版本，version 為待寫入版本
	loadedVersion int
	version       int

	createdAt time.Time
	updatedAt time.Time

	events []shared.DomainEvent
}

// NewAccount 開立新的積分帳戶
//
// 業務規則：
// - customerRef 為外部平台的顧客 ID，同商家內唯一（由 Repository 唯一約束保證）
// - 新帳戶積分為 0、無等級
// - 自動產生推薦碼
func NewAccount(merchantID merchant.MerchantID, customerRef string) (*Account, error) {
	if merchantID.IsEmpty() {
		return nil, merchant.ErrInvalidMerchantID.WithContext("reason", "merchantID cannot be empty")
	}
	customerRef = strings.TrimSpace(customerRef)
	if customerRef == "" || len(customerRef) > MaxCustomerRefLength {
		return nil, ErrInvalidCustomerRef.WithContext("customer_ref", customerRef)
	}

	now := time.Now()
	account := &Account{
		accountID:     NewAccountID(),
		merchantID:    merchantID,
		customerRef:   customerRef,
		referralCode:  NewReferralCode(),
		totalPoints:   newPointsAmountUnchecked(0),
		usedPoints:    newPointsAmountUnchecked(0),
		currentPoints: newPointsAmountUnchecked(0),
		loadedVersion: 0,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}

	account.addEvent(&AccountOpenedEvent{
		accountEvent: newAccountEvent(account.accountID, merchantID, now),
		customerRef:  customerRef,
	})
	return account, nil
}

// NewReferralCode 產生 8 碼大寫推薦碼
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// ===========================
// 聚合重建方法（僅供 Infrastructure Layer 使用）
// ===========================

// ReconstructAccount 從持久化存儲重建聚合根
//
// 重要：即使是從資料庫重建，也必須驗證不變條件，防止損壞資料污染領域層
func ReconstructAccount(
	accountID AccountID,
	merchantID merchant.MerchantID,
	customerRef string,
	referralCode string,
	totalPoints int,
	usedPoints int,
	currentPoints int,
	tierID tier.TierID,
	version int,
	createdAt time.Time,
	updatedAt time.Time,
) (*Account, error) {
	if accountID.IsEmpty() {
		return nil, ErrInvalidAccountID.WithContext("reason", "invalid account ID in database")
	}
	if merchantID.IsEmpty() {
		return nil, merchant.ErrInvalidMerchantID.WithContext("account_id", accountID.String())
	}

	total, err := NewPointsAmount(totalPoints)
	if err != nil {
		return nil, ErrInvariantViolation.WithContext("account_id", accountID.String(), "total_points", totalPoints)
	}
	used, err := NewPointsAmount(usedPoints)
	if err != nil {
		return nil, ErrInvariantViolation.WithContext("account_id", accountID.String(), "used_points", usedPoints)
	}
	if currentPoints < 0 || currentPoints != totalPoints-usedPoints {
		return nil, ErrInvariantViolation.WithContext(
			"account_id", accountID.String(),
			"total_points", totalPoints,
			"used_points", usedPoints,
			"current_points", currentPoints,
		)
	}

	return &Account{
		accountID:     accountID,
		merchantID:    merchantID,
		customerRef:   customerRef,
		referralCode:  referralCode,
		totalPoints:   total,
		usedPoints:    used,
		currentPoints: newPointsAmountUnchecked(currentPoints),
		tierID:        tierID,
		loadedVersion: version,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

// ===========================
// 命令方法（狀態變更）
// ===========================

// Earn 獲得積分
//
// 前置條件：kind 為獲得類型，amount > 0（PositivePointsAmount 保證）
//
// 副作用：
// - totalPoints += amount，currentPoints += amount
// - 以更新後的 totalPoints 與傳入的等級目錄重新分類
// - 產生 PointsEarnedEvent（等級變更時另產生 TierChangedEvent）
//
// 返回待寫入的 LedgerTransaction（調用者負責在同一事務中 Append）
func (a *Account) Earn(
	kind TransactionKind,
	amount PointsAmount,
	description string,
	correlation CorrelationRef,
	details EarnDetails,
	directory *tier.Directory,
	now time.Time,
) (*LedgerTransaction, error) {
	if !kind.IsEarn() {
		return nil, ErrInvalidKind.WithContext("kind", kind, "operation", "earn")
	}
	if amount.Value() <= 0 {
		return nil, ErrInvalidAmount.WithContext("amount", amount.Value())
	}

	newTotal, err := a.totalPoints.Add(amount)
	if err != nil {
		return nil, err
	}
	newCurrent, err := a.currentPoints.Add(amount)
	if err != nil {
		return nil, err
	}

	a.totalPoints = newTotal
	a.currentPoints = newCurrent
	a.touch(now)

	entry := newLedgerTransaction(a.accountID, a.merchantID, kind, amount.Value(), description, correlation, details, now)
	a.addEvent(&PointsEarnedEvent{
		accountEvent:  newAccountEvent(a.accountID, a.merchantID, now),
		transactionID: entry.TransactionID(),
		kind:          kind,
		amount:        amount,
		correlation:   correlation,
	})

	a.ApplyTier(directory, now)
	return entry, nil
}

// Deduct 扣減積分
//
// 前置條件：kind 為扣減類型，amount > 0，currentPoints >= amount
//
// 等級不重新計算：等級只依 totalPoints 分類，扣減永遠不改變 totalPoints，
// 因此兌換或過期不會讓顧客降級。
func (a *Account) Deduct(
	kind TransactionKind,
	amount PointsAmount,
	description string,
	correlation CorrelationRef,
	now time.Time,
) (*LedgerTransaction, error) {
	if !kind.IsDeduction() {
		return nil, ErrInvalidKind.WithContext("kind", kind, "operation", "deduct")
	}
	if amount.Value() <= 0 {
		return nil, ErrInvalidAmount.WithContext("amount", amount.Value())
	}

	newCurrent, err := a.currentPoints.Subtract(amount)
	if err != nil {
		return nil, ErrInsufficientBalance.WithContext(
			"account_id", a.accountID.String(),
			"requested", amount.Value(),
			"available", a.currentPoints.Value(),
		)
	}
	newUsed, err := a.usedPoints.Add(amount)
	if err != nil {
		return nil, err
	}

	a.currentPoints = newCurrent
	a.usedPoints = newUsed
	a.touch(now)

	entry := newLedgerTransaction(a.accountID, a.merchantID, kind, -amount.Value(), description, correlation, EarnDetails{}, now)
	a.addEvent(&PointsDeductedEvent{
		accountEvent:  newAccountEvent(a.accountID, a.merchantID, now),
		transactionID: entry.TransactionID(),
		kind:          kind,
		amount:        amount,
		correlation:   correlation,
	})
	return entry, nil
}

// ApplyTier 以等級目錄重新分類；等級變更時返回 true
//
// 純函數式分類：只依賴聚合當前的 totalPoints，不重新讀取資料庫
func (a *Account) ApplyTier(directory *tier.Directory, now time.Time) bool {
	next, _ := directory.Classify(a.totalPoints.Value())
	if next.Equals(a.tierID) {
		return false
	}

	prev := a.tierID
	a.tierID = next
	a.touch(now)
	a.addEvent(&TierChangedEvent{
		accountEvent: newAccountEvent(a.accountID, a.merchantID, now),
		from:         prev,
		to:           next,
		totalPoints:  a.totalPoints.Value(),
	})
	return true
}

// touch 記錄變更；同一次載入內多次變更只遞增一次版本
func (a *Account) touch(now time.Time) {
	a.updatedAt = now
	if a.version == a.loadedVersion {
		a.version++
	}
}

// ===========================
// 查詢方法
// ===========================

func (a *Account) AccountID() AccountID            { return a.accountID }
func (a *Account) MerchantID() merchant.MerchantID { return a.merchantID }
func (a *Account) CustomerRef() string             { return a.customerRef }
func (a *Account) ReferralCode() string            { return a.referralCode }
func (a *Account) TotalPoints() PointsAmount       { return a.totalPoints }
func (a *Account) UsedPoints() PointsAmount        { return a.usedPoints }
func (a *Account) CurrentPoints() PointsAmount     { return a.currentPoints }
func (a *Account) TierID() tier.TierID             { return a.tierID }
func (a *Account) CreatedAt() time.Time            { return a.createdAt }
func (a *Account) UpdatedAt() time.Time            { return a.updatedAt }

// Version 待寫入的版本號
func (a *Account) Version() int {
	return a.version
}

// ExpectedVersion 讀取時的版本號（Update 的樂觀鎖條件）
func (a *Account) ExpectedVersion() int {
	return a.loadedVersion
}

// HasChanges 自讀取後是否有狀態變更
func (a *Account) HasChanges() bool {
	return a.version != a.loadedVersion
}

// MarkPersisted 持久化成功後由 Repository 調用，使後續變更以新版本為基準
func (a *Account) MarkPersisted() {
	a.loadedVersion = a.version
}

// ===========================
// 事件管理
// ===========================

func (a *Account) addEvent(event shared.DomainEvent) {
	a.events = append(a.events, event)
}

// PullEvents 獲取所有待發布事件並清空列表
//
// 事件在事務提交後才發布（Pull 模式，聚合根不依賴 EventPublisher）
func (a *Account) PullEvents() []shared.DomainEvent {
	events := a.events
	a.events = nil
	return events
}
