// Package merchant 商家後台用例：計畫設定與等級管理
package merchant

import (
	"context"
	"log/slog"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// Input DTO
// ===========================

// UpdateSettingsCommand 整體替換商家設定
type UpdateSettingsCommand struct {
	MerchantID merchant.MerchantID
	Settings   merchant.LoyaltySettings
}

// CreateTierCommand 新增等級
type CreateTierCommand struct {
	MerchantID merchant.MerchantID
	Definition tier.Definition
}

// UpdateTierCommand 修改等級
type UpdateTierCommand struct {
	MerchantID merchant.MerchantID
	TierID     tier.TierID
	Definition tier.Definition
}

// TierChangeResult 等級異動結果與隨後的重新分類統計
type TierChangeResult struct {
	Tier      *TierView // 刪除時為 nil
	Recompute *ledger.MerchantRecomputeReport
}

// ===========================
// Service
// ===========================

// Service 商家後台用例
//
// 等級異動不改寫帳本；異動提交後逐一重新分類商家的帳戶。
type Service struct {
	merchants merchant.MerchantRepository
	tiers     tier.TierRepository
	txManager shared.TransactionManager
	engine    *ledger.Engine
	logger    *slog.Logger
}

// NewService 創建商家後台用例
func NewService(
	merchants merchant.MerchantRepository,
	tiers tier.TierRepository,
	txManager shared.TransactionManager,
	engine *ledger.Engine,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		merchants: merchants,
		tiers:     tiers,
		txManager: txManager,
		engine:    engine,
		logger:    logger.With("component", "merchant_admin"),
	}
}

// GetMerchant 查詢商家資料與設定
func (s *Service) GetMerchant(ctx context.Context, merchantID merchant.MerchantID) (*MerchantView, error) {
	m, err := s.merchants.FindByID(nil, merchantID)
	if err != nil {
		return nil, err
	}
	return newMerchantView(m), nil
}

// UpdateSettings 驗證並替換商家設定
func (s *Service) UpdateSettings(ctx context.Context, cmd UpdateSettingsCommand) (*MerchantView, error) {
	var view *MerchantView
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		m, err := s.merchants.FindByID(tx, cmd.MerchantID)
		if err != nil {
			return err
		}
		if err := m.UpdateSettings(cmd.Settings); err != nil {
			return err
		}
		if err := s.merchants.Update(tx, m); err != nil {
			return err
		}
		view = newMerchantView(m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loyalty settings updated",
		"merchant_id", cmd.MerchantID.String(),
		"enabled", view.Settings.Enabled,
	)
	return view, nil
}

// ListTiers 依門檻升序列出等級
func (s *Service) ListTiers(ctx context.Context, merchantID merchant.MerchantID) ([]TierView, error) {
	if _, err := s.merchants.FindByID(nil, merchantID); err != nil {
		return nil, err
	}
	tiers, err := s.tiers.ListByMerchant(nil, merchantID)
	if err != nil {
		return nil, err
	}

	views := make([]TierView, 0, len(tiers))
	for _, t := range tier.NewDirectory(tiers).Tiers() {
		views = append(views, newTierView(t))
	}
	return views, nil
}

// CreateTier 新增等級（同商家門檻不可重複）
func (s *Service) CreateTier(ctx context.Context, cmd CreateTierCommand) (*TierChangeResult, error) {
	var view TierView
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		if _, err := s.merchants.FindByID(tx, cmd.MerchantID); err != nil {
			return err
		}
		directory, err := s.directory(tx, cmd.MerchantID)
		if err != nil {
			return err
		}
		if err := directory.CheckThreshold(cmd.Definition.MinPoints, tier.TierID{}); err != nil {
			return err
		}

		t, err := tier.NewTier(cmd.MerchantID, cmd.Definition)
		if err != nil {
			return err
		}
		if err := s.tiers.Save(tx, t); err != nil {
			return err
		}
		view = newTierView(t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tier created",
		"merchant_id", cmd.MerchantID.String(),
		"tier_id", view.TierID,
		"min_points", view.MinPoints,
	)
	return s.recompute(ctx, cmd.MerchantID, &view)
}

// UpdateTier 修改等級定義
func (s *Service) UpdateTier(ctx context.Context, cmd UpdateTierCommand) (*TierChangeResult, error) {
	var view TierView
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		t, err := s.ownedTier(tx, cmd.MerchantID, cmd.TierID)
		if err != nil {
			return err
		}
		directory, err := s.directory(tx, cmd.MerchantID)
		if err != nil {
			return err
		}
		if err := directory.CheckThreshold(cmd.Definition.MinPoints, t.TierID()); err != nil {
			return err
		}

		if err := t.Redefine(cmd.Definition); err != nil {
			return err
		}
		if err := s.tiers.Update(tx, t); err != nil {
			return err
		}
		view = newTierView(t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tier updated",
		"merchant_id", cmd.MerchantID.String(),
		"tier_id", view.TierID,
		"min_points", view.MinPoints,
	)
	return s.recompute(ctx, cmd.MerchantID, &view)
}

// DeleteTier 刪除等級；原本屬於該等級的帳戶重新分類到其他等級或無等級
func (s *Service) DeleteTier(ctx context.Context, merchantID merchant.MerchantID, tierID tier.TierID) (*TierChangeResult, error) {
	err := s.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
		if _, err := s.ownedTier(tx, merchantID, tierID); err != nil {
			return err
		}
		return s.tiers.Delete(tx, tierID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tier deleted",
		"merchant_id", merchantID.String(),
		"tier_id", tierID.String(),
	)
	return s.recompute(ctx, merchantID, nil)
}

// ownedTier 讀取等級並確認屬於該商家；其他商家的等級視為不存在
func (s *Service) ownedTier(tx shared.TransactionContext, merchantID merchant.MerchantID, tierID tier.TierID) (*tier.Tier, error) {
	t, err := s.tiers.FindByID(tx, tierID)
	if err != nil {
		return nil, err
	}
	if !t.MerchantID().Equals(merchantID) {
		return nil, tier.ErrTierNotFound.WithContext("tier_id", tierID.String())
	}
	return t, nil
}

func (s *Service) directory(tx shared.TransactionContext, merchantID merchant.MerchantID) (*tier.Directory, error) {
	tiers, err := s.tiers.ListByMerchant(tx, merchantID)
	if err != nil {
		return nil, err
	}
	return tier.NewDirectory(tiers), nil
}

// recompute 等級異動已提交；重新分類失敗只記錄，異動本身不回滾
func (s *Service) recompute(ctx context.Context, merchantID merchant.MerchantID, view *TierView) (*TierChangeResult, error) {
	report, err := s.engine.RecomputeMerchantTiers(ctx, merchantID)
	if err != nil {
		s.logger.Error("recompute tiers failed",
			"merchant_id", merchantID.String(),
			"error", err,
		)
		return &TierChangeResult{Tier: view}, nil
	}
	return &TierChangeResult{Tier: view, Recompute: report}, nil
}
