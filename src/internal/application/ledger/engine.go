package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// ===========================
// Ledger Engine
// ===========================

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 10 * time.Millisecond
)

// Options Engine 的可選設定
type Options struct {
	MaxRetries   int           // ErrConcurrentModification 時的重試次數
	RetryBackoff time.Duration // 第 n 次重試等待 n × RetryBackoff
	Clock        func() time.Time
	Logger       *slog.Logger
	Publisher    shared.EventPublisher // nil = 不發布
}

// Engine 帳戶與帳本的唯一寫入者
//
// 職責：
// 1. 每次 Earn / Deduct 在一個事務內完成：鎖定帳戶列、寫入帳本、更新帳戶
// 2. 以 (帳戶, 類型, 關聯參照) 保證冪等
// 3. 樂觀鎖衝突時有限次重試
// 4. 事務提交後才發布領域事件
//
// 等級目錄只讀取，不鎖定等級列。
type Engine struct {
	accounts  points.AccountRepository
	ledger    points.LedgerRepository
	tiers     tier.TierRepository
	txManager shared.TransactionManager

	maxRetries   int
	retryBackoff time.Duration
	clock        func() time.Time
	logger       *slog.Logger
	publisher    shared.EventPublisher
}

// NewEngine 創建 Engine 實例
func NewEngine(
	accounts points.AccountRepository,
	ledger points.LedgerRepository,
	tiers tier.TierRepository,
	txManager shared.TransactionManager,
	opts Options,
) *Engine {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		accounts:     accounts,
		ledger:       ledger,
		tiers:        tiers,
		txManager:    txManager,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		clock:        opts.Clock,
		logger:       opts.Logger.With("component", "ledger_engine"),
		publisher:    opts.Publisher,
	}
}

// Now 引擎使用的時鐘（測試可替換）
func (e *Engine) Now() time.Time {
	return e.clock()
}

// Atomically 在事務中執行 fn；遇到樂觀鎖衝突時整個 fn 重新執行
//
// fn 可能被執行多次，閉包內的結果變數必須在每次執行時重新賦值。
// 兌換與過期處理以此組合自己的原子單元。
func (e *Engine) Atomically(ctx context.Context, fn func(tx shared.TransactionContext) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying after concurrent modification", "attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * e.retryBackoff):
			}
		}

		err = e.txManager.InTransaction(ctx, fn)
		if !errors.Is(err, points.ErrConcurrentModification) {
			return err
		}
	}

	e.logger.Warn("giving up after concurrent modifications", "retries", e.maxRetries)
	return err
}

// Publish 發布結果中累積的事件（必須在事務提交之後調用）
func (e *Engine) Publish(results ...*TransactionResult) {
	var events []shared.DomainEvent
	for _, r := range results {
		if r == nil {
			continue
		}
		events = append(events, r.Events...)
		r.Events = nil
	}
	e.publishEvents(events)
}

func (e *Engine) publishEvents(events []shared.DomainEvent) {
	if e.publisher == nil || len(events) == 0 {
		return
	}
	// 帳本已提交，發布失敗只記錄
	if err := e.publisher.PublishBatch(events); err != nil {
		e.logger.Error("publish domain events failed", "count", len(events), "error", err)
	}
}

// loadDirectory 讀取帳戶所屬商家的等級目錄
func (e *Engine) loadDirectory(tx shared.TransactionContext, account *points.Account) (*tier.Directory, error) {
	tiers, err := e.tiers.ListByMerchant(tx, account.MerchantID())
	if err != nil {
		return nil, err
	}
	return tier.NewDirectory(tiers), nil
}
