package commerce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	customerapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/shopspring/decimal"
)

// ===========================
// Event Adapter
// ===========================

// 事件處理結果（日誌與 metrics 使用）
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// CouponUser 結帳時標記優惠券已使用
type CouponUser interface {
	MarkCouponUsed(ctx context.Context, merchantID merchant.MerchantID, code string) (*redemption.CouponView, error)
}

// Outcome 單一事件的處理結果
type Outcome struct {
	Status string
	Reason string // ignored / failed 的原因
	Points int    // 本次事件獲得或扣回的積分
}

// Options Adapter 的可選設定
type Options struct {
	Logger  *slog.Logger
	Observe func(eventType EventType, outcome string)

	// Tiers 與 DefaultTiers 皆設定時，新商家在同一事務內建立預設等級
	Tiers        tier.TierRepository
	DefaultTiers []tier.Definition
}

// Adapter 把正規化事件轉換為 Ledger Engine 操作
//
// 錯誤分類：
// - 業務規則失敗（DomainError）：記錄後吞下，返回 OutcomeIgnored / OutcomeFailed
// - 基礎設施失敗：返回錯誤，讓平台重送（帳本冪等，重送安全）
type Adapter struct {
	merchants  merchant.MerchantRepository
	txManager  shared.TransactionManager
	engine     *ledger.Engine
	customers  customerapp.RegisterCustomerUseCase
	coupons    CouponUser
	calculator *points.PointsCalculationService
	tiers      tier.TierRepository
	seedTiers  []tier.Definition
	logger     *slog.Logger
	observe    func(eventType EventType, outcome string)
}

// NewAdapter 創建 Adapter 實例
func NewAdapter(
	merchants merchant.MerchantRepository,
	txManager shared.TransactionManager,
	engine *ledger.Engine,
	customers customerapp.RegisterCustomerUseCase,
	coupons CouponUser,
	opts Options,
) *Adapter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		merchants:  merchants,
		txManager:  txManager,
		engine:     engine,
		customers:  customers,
		coupons:    coupons,
		calculator: points.NewPointsCalculationService(),
		tiers:      opts.Tiers,
		seedTiers:  opts.DefaultTiers,
		logger:     opts.Logger.With("component", "commerce_adapter"),
		observe:    opts.Observe,
	}
}

// Handle 處理單一事件
func (a *Adapter) Handle(ctx context.Context, evt Event) (*Outcome, error) {
	logger := a.logger.With("event", string(evt.Type), "store_id", evt.StoreID)

	outcome, err := a.dispatch(ctx, evt)
	if err != nil && isBusinessError(err) {
		logger.Warn("event rejected by business rule", "error", err)
		outcome, err = &Outcome{Status: OutcomeFailed, Reason: err.Error()}, nil
	}
	if err != nil {
		logger.Error("event handling failed", "error", err)
		a.record(evt.Type, OutcomeFailed)
		return nil, err
	}

	switch outcome.Status {
	case OutcomeIgnored:
		logger.Info("event ignored", "reason", outcome.Reason)
	case OutcomeApplied:
		logger.Info("event applied", "points", outcome.Points)
	}
	a.record(evt.Type, outcome.Status)
	return outcome, nil
}

func (a *Adapter) dispatch(ctx context.Context, evt Event) (*Outcome, error) {
	if strings.TrimSpace(evt.StoreID) == "" {
		return ignored("missing store id"), nil
	}

	switch evt.Type {
	case EventMerchantAuthorized:
		return a.authorize(ctx, evt)
	case EventAppUninstalled:
		return a.uninstall(ctx, evt)
	}

	m, out, err := a.enabledMerchant(evt.StoreID)
	if m == nil {
		return out, err
	}

	switch evt.Type {
	case EventOrderCreated:
		if evt.Order == nil {
			return ignored("missing order payload"), nil
		}
		return a.orderCreated(ctx, m, *evt.Order)
	case EventOrderStatusChanged:
		if evt.Order == nil {
			return ignored("missing order payload"), nil
		}
		return a.orderStatusChanged(ctx, m, *evt.Order)
	case EventCustomerCreated:
		if evt.Customer == nil {
			return ignored("missing customer payload"), nil
		}
		return a.customerCreated(ctx, m, *evt.Customer)
	case EventCustomerUpdated:
		if evt.Customer == nil {
			return ignored("missing customer payload"), nil
		}
		return a.customerUpdated(ctx, m, *evt.Customer)
	default:
		return ignored("unhandled event " + evt.Name), nil
	}
}

// enabledMerchant 商家不存在或計畫關閉時返回 ignored 結果（m 為 nil）
func (a *Adapter) enabledMerchant(storeID string) (*merchant.Merchant, *Outcome, error) {
	m, err := a.merchants.FindByExternalStoreID(nil, storeID)
	if errors.Is(err, merchant.ErrMerchantNotFound) {
		return nil, ignored("unknown merchant"), nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !m.ProgramEnabled() {
		return nil, ignored("loyalty program disabled"), nil
	}
	return m, nil, nil
}

// ===========================
// 商家事件
// ===========================

func (a *Adapter) authorize(ctx context.Context, evt Event) (*Outcome, error) {
	auth := Authorization{}
	if evt.Authorization != nil {
		auth = *evt.Authorization
	}

	upsert := func(tx shared.TransactionContext) error {
		m, err := a.merchants.FindByExternalStoreID(tx, evt.StoreID)
		if errors.Is(err, merchant.ErrMerchantNotFound) {
			created, err := merchant.NewMerchant(evt.StoreID, auth.StoreName, auth.AccessToken)
			if err != nil {
				return err
			}
			if err := a.merchants.Save(tx, created); err != nil {
				return err
			}
			return a.seedDefaultTiers(tx, created.MerchantID())
		}
		if err != nil {
			return err
		}
		m.Authorize(auth.StoreName, auth.AccessToken)
		return a.merchants.Update(tx, m)
	}

	err := a.txManager.InTransaction(ctx, upsert)
	if errors.Is(err, merchant.ErrMerchantAlreadyExists) {
		// 並發的授權事件先建立了商家，改走更新路徑
		err = a.txManager.InTransaction(ctx, upsert)
	}
	if err != nil {
		return nil, err
	}
	return applied(0), nil
}

// seedDefaultTiers 只在商家第一次建立時執行；重新授權不會補建已刪除的等級
func (a *Adapter) seedDefaultTiers(tx shared.TransactionContext, merchantID merchant.MerchantID) error {
	if a.tiers == nil {
		return nil
	}
	for _, def := range a.seedTiers {
		t, err := tier.NewTier(merchantID, def)
		if err != nil {
			return fmt.Errorf("default tier %q: %w", def.Name, err)
		}
		if err := a.tiers.Save(tx, t); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) uninstall(ctx context.Context, evt Event) (*Outcome, error) {
	var out *Outcome
	err := a.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		m, err := a.merchants.FindByExternalStoreID(tx, evt.StoreID)
		if errors.Is(err, merchant.ErrMerchantNotFound) {
			out = ignored("unknown merchant")
			return nil
		}
		if err != nil {
			return err
		}
		m.Deactivate()
		out = applied(0)
		return a.merchants.Update(tx, m)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ===========================
// 訂單事件
// ===========================

func (a *Adapter) orderCreated(ctx context.Context, m *merchant.Merchant, order Order) (*Outcome, error) {
	if order.OrderID == "" {
		return ignored("missing order id"), nil
	}

	// 結帳使用的優惠券與積分無關，先處理
	if code := strings.TrimSpace(order.CouponCode); code != "" {
		a.markCouponUsed(ctx, m, order.OrderID, code)
	}

	if order.Customer.CustomerID == "" {
		return ignored("guest order"), nil
	}
	if _, err := a.registerCustomer(ctx, m, order.Customer); err != nil {
		return nil, err
	}
	accountID, err := a.openAccount(ctx, m, order.Customer.CustomerID)
	if err != nil {
		return nil, err
	}

	balance, err := a.engine.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	multiplier := decimal.NewFromInt(1)
	if balance.Tier != nil {
		if parsed, err := decimal.NewFromString(balance.Tier.Multiplier); err == nil {
			multiplier = parsed
		}
	}

	settings := m.Settings()
	earned, err := a.calculator.CalculateOrderPoints(order.Amount, settings, multiplier)
	if err != nil {
		return nil, err
	}
	if earned.IsZero() {
		return ignored("order earns no points"), nil
	}

	amount := order.Amount
	res, err := a.engine.Earn(ctx, ledger.EarnCommand{
		AccountID:   accountID,
		Kind:        points.KindEarnPurchase,
		Amount:      earned.Value(),
		Description: fmt.Sprintf("Purchase points for order #%s", order.OrderID),
		Correlation: order.OrderID,
		OrderAmount: &amount,
		ExpiresAt:   settings.ExpiryFrom(a.engine.Now()),
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		return ignored("duplicate order event"), nil
	}
	return applied(earned.Value()), nil
}

func (a *Adapter) markCouponUsed(ctx context.Context, m *merchant.Merchant, orderID, code string) {
	if a.coupons == nil || !strings.HasPrefix(strings.ToUpper(code), coupon.CodePrefix) {
		return
	}
	_, err := a.coupons.MarkCouponUsed(ctx, m.MerchantID(), code)
	switch {
	case err == nil:
		a.logger.Info("coupon used at checkout", "order_id", orderID, "code", code)
	case errors.Is(err, coupon.ErrCouponAlreadyUsed):
		// 重送的訂單事件
	default:
		a.logger.Warn("mark coupon used failed", "order_id", orderID, "code", code, "error", err)
	}
}

func (a *Adapter) orderStatusChanged(ctx context.Context, m *merchant.Merchant, order Order) (*Outcome, error) {
	if !order.IsReversal() {
		return ignored("status " + order.Status + " does not affect points"), nil
	}
	if order.OrderID == "" {
		return ignored("missing order id"), nil
	}

	res, err := a.engine.ReverseEarn(ctx, ledger.ReverseEarnCommand{
		MerchantID:  m.MerchantID(),
		SourceKind:  points.KindEarnPurchase,
		Correlation: order.OrderID,
		Description: fmt.Sprintf("Points reversed for %s order #%s", strings.ToLower(order.Status), order.OrderID),
	})
	switch {
	case errors.Is(err, points.ErrTransactionNotFound):
		return ignored("order earned no points"), nil
	case errors.Is(err, points.ErrInsufficientBalance):
		a.logger.Warn("order points already spent, reversal skipped",
			"merchant_id", m.MerchantID().String(),
			"order_id", order.OrderID,
		)
		return ignored("points already spent"), nil
	case err != nil:
		return nil, err
	}

	if res.Reversal == nil {
		return ignored("order points already expired"), nil
	}
	if res.Reversal.Duplicate {
		return ignored("duplicate reversal"), nil
	}
	return applied(res.Reversal.Transaction.Amount), nil
}

// ===========================
// 顧客事件
// ===========================

func (a *Adapter) customerCreated(ctx context.Context, m *merchant.Merchant, profile CustomerProfile) (*Outcome, error) {
	if profile.CustomerID == "" {
		return ignored("missing customer id"), nil
	}
	if _, err := a.registerCustomer(ctx, m, profile); err != nil {
		return nil, err
	}
	accountID, err := a.openAccount(ctx, m, profile.CustomerID)
	if err != nil {
		return nil, err
	}

	settings := m.Settings()
	total := 0

	if settings.SignupBonus > 0 {
		res, err := a.engine.Earn(ctx, ledger.EarnCommand{
			AccountID:   accountID,
			Kind:        points.KindEarnSignup,
			Amount:      settings.SignupBonus,
			Description: "Signup bonus",
			Correlation: "signup",
		})
		if err != nil {
			return nil, err
		}
		if !res.Duplicate {
			total += settings.SignupBonus
		}
	}

	if code := strings.TrimSpace(profile.ReferralCode); code != "" {
		granted, err := a.grantReferral(ctx, m, accountID, code)
		if err != nil {
			return nil, err
		}
		total += granted
	}

	return applied(total), nil
}

// grantReferral 推薦人與被推薦人各得一次獎勵；返回被推薦人獲得的積分
func (a *Adapter) grantReferral(ctx context.Context, m *merchant.Merchant, accountID points.AccountID, code string) (int, error) {
	referrerID, err := a.engine.FindByReferralCode(ctx, m.MerchantID(), code)
	if errors.Is(err, points.ErrAccountNotFound) {
		a.logger.Info("unknown referral code", "code", code)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if referrerID.Equals(accountID) {
		return 0, nil
	}

	settings := m.Settings()
	if settings.ReferralBonus > 0 {
		_, err := a.engine.Earn(ctx, ledger.EarnCommand{
			AccountID:   referrerID,
			Kind:        points.KindEarnReferral,
			Amount:      settings.ReferralBonus,
			Description: "Referral bonus",
			Correlation: "referral:" + accountID.String(),
		})
		if err != nil {
			return 0, err
		}
	}

	granted := 0
	if settings.ReferredBonus > 0 {
		res, err := a.engine.Earn(ctx, ledger.EarnCommand{
			AccountID:   accountID,
			Kind:        points.KindEarnReferral,
			Amount:      settings.ReferredBonus,
			Description: "Welcome bonus for joining by referral",
			Correlation: "referred:" + referrerID.String(),
		})
		if err != nil {
			return 0, err
		}
		if !res.Duplicate {
			granted = settings.ReferredBonus
		}
	}
	return granted, nil
}

func (a *Adapter) customerUpdated(ctx context.Context, m *merchant.Merchant, profile CustomerProfile) (*Outcome, error) {
	if profile.CustomerID == "" {
		return ignored("missing customer id"), nil
	}
	res, err := a.registerCustomer(ctx, m, profile)
	if err != nil {
		return nil, err
	}
	if !res.Created && !res.Changed {
		return ignored("profile unchanged"), nil
	}
	return applied(0), nil
}

// ===========================
// Helpers
// ===========================

func (a *Adapter) registerCustomer(ctx context.Context, m *merchant.Merchant, profile CustomerProfile) (*customerapp.RegisterCustomerResult, error) {
	return a.customers.Execute(ctx, customerapp.RegisterCustomerCommand{
		MerchantID: m.MerchantID(),
		ExternalID: profile.CustomerID,
		Name:       profile.Name,
		Email:      profile.Email,
		Phone:      profile.Phone,
	})
}

func (a *Adapter) openAccount(ctx context.Context, m *merchant.Merchant, customerRef string) (points.AccountID, error) {
	res, err := a.engine.OpenOrGet(ctx, ledger.OpenAccountCommand{
		MerchantID:  m.MerchantID(),
		CustomerRef: customerRef,
	})
	if err != nil {
		return points.AccountID{}, err
	}
	return res.AccountID, nil
}

func (a *Adapter) record(eventType EventType, outcome string) {
	if a.observe != nil {
		a.observe(eventType, outcome)
	}
}

func applied(pts int) *Outcome {
	return &Outcome{Status: OutcomeApplied, Points: pts}
}

func ignored(reason string) *Outcome {
	return &Outcome{Status: OutcomeIgnored, Reason: reason}
}

// isBusinessError 業務規則拒絕（不需平台重送）
//
// 樂觀鎖重試耗盡與資料損壞屬於基礎設施問題，需要重送
func isBusinessError(err error) bool {
	if _, ok := shared.AsDomainError(err); !ok {
		return false
	}
	return !errors.Is(err, points.ErrConcurrentModification) &&
		!errors.Is(err, points.ErrCorruptedTransaction) &&
		!errors.Is(err, points.ErrInvariantViolation)
}
