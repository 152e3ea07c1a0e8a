// Package expiry 定期讓到期的積分過期
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
)

// ===========================
// Expiration Sweeper
// ===========================

const defaultBatchSize = 100

// Report 一次掃描的統計
type Report struct {
	StartedAt     time.Time
	Duration      time.Duration
	Scanned       int // 處理過的到期交易
	Expired       int // 寫入 EXPIRED 交易的筆數
	MarkedOnly    int // 沒有可過期積分，只標記已處理
	Skipped       int
	PointsExpired int
	Failed        int
	Errors        []string
}

// SweeperOptions Sweeper 的可選設定
type SweeperOptions struct {
	BatchSize  int
	MaxEntries int // 單次掃描上限；0 = 不限
	Logger     *slog.Logger
}

// Sweeper 找出到期未處理的獲得交易，逐筆在獨立事務中過期
//
// 單筆失敗只記錄在報告中，不影響其他交易；掃描以鍵集位置前進，同一次掃描內不會重試失敗的交易
type Sweeper struct {
	engine     *ledger.Engine
	ledger     points.LedgerRepository
	batchSize  int
	maxEntries int
	logger     *slog.Logger
}

// NewSweeper 創建 Sweeper 實例
func NewSweeper(engine *ledger.Engine, ledgerRepo points.LedgerRepository, opts SweeperOptions) *Sweeper {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sweeper{
		engine:     engine,
		ledger:     ledgerRepo,
		batchSize:  opts.BatchSize,
		maxEntries: opts.MaxEntries,
		logger:     opts.Logger.With("component", "expiry_sweeper"),
	}
}

// Sweep 執行一次完整掃描
//
// 只有查詢候選交易失敗時返回錯誤；單筆錯誤記錄在 Report.Errors
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: s.engine.Now()}
	var cursor *points.ExpiryCursor

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(report), err
		}
		if s.maxEntries > 0 && report.Scanned >= s.maxEntries {
			break
		}

		limit := s.batchSize
		if s.maxEntries > 0 && s.maxEntries-report.Scanned < limit {
			limit = s.maxEntries - report.Scanned
		}
		candidates, err := s.ledger.FindExpiryCandidates(nil, s.engine.Now(), cursor, limit)
		if err != nil {
			return s.finish(report), fmt.Errorf("find expiry candidates: %w", err)
		}
		if len(candidates) == 0 {
			break
		}
		cursor = points.CursorAt(candidates[len(candidates)-1])

		for _, candidate := range candidates {
			report.Scanned++
			id := candidate.TransactionID()

			outcome, err := s.engine.ExpireEntry(ctx, id)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id.String(), err))
				s.logger.Error("expire ledger entry failed",
					"transaction_id", id.String(),
					"account_id", candidate.AccountID().String(),
					"error", err,
				)
				continue
			}

			switch {
			case outcome.Skipped:
				report.Skipped++
			case outcome.Expiration == nil:
				report.MarkedOnly++
			default:
				report.Expired++
				report.PointsExpired += outcome.ExpiredPoints
			}
		}
	}

	return s.finish(report), nil
}

func (s *Sweeper) finish(report *Report) *Report {
	report.Duration = s.engine.Now().Sub(report.StartedAt)
	if report.Scanned > 0 || report.Failed > 0 {
		s.logger.Info("expiry sweep finished",
			"scanned", report.Scanned,
			"expired", report.Expired,
			"marked_only", report.MarkedOnly,
			"points_expired", report.PointsExpired,
			"failed", report.Failed,
		)
	}
	return report
}
