package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
)

// ===========================
// Redeem Points Use Case
// ===========================

const defaultExternalTimeout = 5 * time.Second

// RetryQueue 外部建立失敗的優惠券交給背景派送器重試
type RetryQueue interface {
	Enqueue(id coupon.CouponID) bool
}

// RedeemCommand 兌換指令
type RedeemCommand struct {
	MerchantID merchant.MerchantID
	AccountID  points.AccountID
	Points     int
}

// RedeemResult 兌換結果
//
// Warning 非空表示兌換已成功、積分已扣減，但外部平台的優惠碼尚未建立
type RedeemResult struct {
	Coupon  CouponView
	Balance ledger.Balance
	Warning string
}

// Options Service 的可選設定
type Options struct {
	ExternalTimeout time.Duration
	Logger          *slog.Logger
	Retry           RetryQueue           // nil = 不重試
	Observe         func(outcome string) // 外部建立結果（metrics）
}

// Service 積分兌換與優惠券查詢
type Service struct {
	engine    *ledger.Engine
	merchants merchant.MerchantRepository
	coupons   coupon.CouponRepository
	txManager shared.TransactionManager
	external  *externalIssuer
	retry     RetryQueue
	logger    *slog.Logger
}

// NewService 創建 Service 實例
func NewService(
	engine *ledger.Engine,
	merchants merchant.MerchantRepository,
	coupons coupon.CouponRepository,
	txManager shared.TransactionManager,
	issuer coupon.ExternalIssuer,
	opts Options,
) *Service {
	if opts.ExternalTimeout <= 0 {
		opts.ExternalTimeout = defaultExternalTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "redemption")

	return &Service{
		engine:    engine,
		merchants: merchants,
		coupons:   coupons,
		txManager: txManager,
		external: &externalIssuer{
			issuer:  issuer,
			coupons: coupons,
			timeout: opts.ExternalTimeout,
			clock:   engine.Now,
			logger:  logger,
			observe: opts.Observe,
		},
		retry:  opts.Retry,
		logger: logger,
	}
}

// Redeem 以積分兌換折扣券
//
// 業務流程：
// 1. 驗證商家啟用、帳戶屬於商家、兌換規則（最低、上限、餘額），任何寫入之前
// 2. 同一事務：建立優惠券 + Deduct(REDEEM_COUPON, 關聯參照 = 優惠券 ID)
// 3. 提交後：在外部平台建立優惠碼（有逾時）
//
// 外部建立失敗：兌換仍然成功，返回 Warning，優惠券交給派送器重試，積分不退還。
//
// 錯誤處理：
// - points.ErrInvalidAmount / ErrInsufficientBalance
// - coupon.ErrBelowMinimumRedemption / ErrAboveMaximumRedemption
// - merchant.ErrMerchantInactive: 商家停用或計畫關閉
// - points.ErrAccountMerchantMismatch: 帳戶不屬於此商家
func (s *Service) Redeem(ctx context.Context, cmd RedeemCommand) (*RedeemResult, error) {
	// Step 1: 驗證（無寫入）
	m, err := s.activeMerchant(cmd.MerchantID)
	if err != nil {
		return nil, err
	}
	if cmd.Points <= 0 {
		return nil, points.ErrInvalidAmount.WithContext("amount", cmd.Points)
	}
	requested, err := points.NewPositivePointsAmount(cmd.Points)
	if err != nil {
		return nil, err
	}

	balance, err := s.engine.GetBalance(ctx, cmd.AccountID)
	if err != nil {
		return nil, err
	}
	if balance.MerchantID != cmd.MerchantID.String() {
		return nil, points.ErrAccountMerchantMismatch.WithContext(
			"account_id", cmd.AccountID.String(),
			"merchant_id", cmd.MerchantID.String(),
		)
	}
	current, err := points.NewPointsAmount(balance.CurrentPoints)
	if err != nil {
		return nil, err
	}

	policy := coupon.PolicyFromSettings(m.Settings())
	if err := policy.Validate(requested, current); err != nil {
		return nil, err
	}
	discount, err := policy.CalculateDiscount(requested)
	if err != nil {
		return nil, err
	}

	// Step 2: 同一事務建立優惠券並扣減
	var (
		issued *coupon.Coupon
		result *ledger.TransactionResult
	)
	err = s.engine.Atomically(ctx, func(tx shared.TransactionContext) error {
		now := s.engine.Now()
		c, err := coupon.NewCoupon(cmd.MerchantID, cmd.AccountID, requested, discount, m.Settings().CouponExpiryFrom(now), now)
		if err != nil {
			return err
		}
		if err := s.coupons.Save(tx, c); err != nil {
			return err
		}

		res, err := s.engine.DeductWithContext(tx, ledger.DeductCommand{
			AccountID:   cmd.AccountID,
			Kind:        points.KindRedeemCoupon,
			Amount:      requested.Value(),
			Description: fmt.Sprintf("Redeemed for coupon %s", c.Code()),
			Correlation: c.Correlation().String(),
		})
		if err != nil {
			return err
		}
		issued, result = c, res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.engine.Publish(result)

	s.logger.Info("points redeemed",
		"merchant_id", cmd.MerchantID.String(),
		"account_id", cmd.AccountID.String(),
		"coupon_id", issued.CouponID().String(),
		"points", requested.Value(),
		"discount", issued.DiscountAmount().StringFixed(2),
	)

	// Step 3: 提交後建立外部優惠碼
	out := &RedeemResult{Balance: result.Balance}
	switch err := s.external.issue(ctx, m, issued); {
	case err == nil:
	case errors.Is(err, errExternalInFlight):
		// 背景派送器已先認領
		if latest, findErr := s.coupons.FindByID(nil, issued.CouponID()); findErr == nil {
			issued = latest
		}
	default:
		out.Warning = coupon.ErrExternalCreationFailed.Message
		if s.retry != nil {
			s.retry.Enqueue(issued.CouponID())
		}
	}
	out.Coupon = newCouponView(issued)
	return out, nil
}

func (s *Service) activeMerchant(id merchant.MerchantID) (*merchant.Merchant, error) {
	m, err := s.merchants.FindByID(nil, id)
	if err != nil {
		return nil, err
	}
	if !m.ProgramEnabled() {
		return nil, merchant.ErrMerchantInactive.WithContext("merchant_id", id.String())
	}
	return m, nil
}

// ===========================
// 優惠券使用與查詢
// ===========================

// MarkCouponUsed 結帳時外部平台確認使用
//
// 錯誤處理：
// - coupon.ErrCouponNotFound / ErrCouponAlreadyUsed / ErrCouponExpired
func (s *Service) MarkCouponUsed(ctx context.Context, merchantID merchant.MerchantID, code string) (*CouponView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var view CouponView
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		c, err := s.coupons.FindByCode(tx, merchantID, code)
		if err != nil {
			return err
		}
		if err := c.MarkUsed(s.engine.Now()); err != nil {
			return err
		}
		if err := s.coupons.UpdateUsage(tx, c); err != nil {
			return err
		}
		view = newCouponView(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListCoupons 商家的所有優惠券
func (s *Service) ListCoupons(ctx context.Context, merchantID merchant.MerchantID, page, pageSize int) (*CouponPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, pageSize = ledger.NormalizePage(page, pageSize)
	items, total, err := s.coupons.ListByMerchant(nil, merchantID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list merchant coupons: %w", err)
	}
	return newCouponPage(items, total, page, pageSize), nil
}

// ListAccountCoupons 顧客的優惠券
func (s *Service) ListAccountCoupons(ctx context.Context, accountID points.AccountID, page, pageSize int) (*CouponPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, pageSize = ledger.NormalizePage(page, pageSize)
	items, total, err := s.coupons.ListByAccount(nil, accountID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list account coupons: %w", err)
	}
	return newCouponPage(items, total, page, pageSize), nil
}
