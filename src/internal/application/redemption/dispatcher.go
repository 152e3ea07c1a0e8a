package redemption

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
)

// ===========================
// External Coupon Dispatcher
// ===========================

// DispatcherOptions 背景派送器設定
type DispatcherOptions struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int           // 每張優惠券最多嘗試次數
	Backoff        time.Duration // 第 n 次失敗後等待 n × Backoff 再重試
	RescanInterval time.Duration // 定期掃描資料庫中未完成的優惠券
	Timeout        time.Duration // 單次外部呼叫逾時
	StaleAfter     time.Duration // issuing 超過此時間未更新視為中斷，可重新認領
	Clock          func() time.Time
	Logger         *slog.Logger
	Observe        func(outcome string)
}

func (o *DispatcherOptions) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = 30 * time.Second
	}
	if o.RescanInterval <= 0 {
		o.RescanInterval = 5 * time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultExternalTimeout
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * o.Timeout
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Dispatcher 以 worker goroutine 重試外部優惠碼建立
//
// 生命週期：Start 時載入資料庫中 pending / failed（及中斷的 issuing）的優惠券，Stop 時等待 worker 結束。
// 佇列滿時丟棄，下一次定期掃描會再撿回來。
type Dispatcher struct {
	coupons   coupon.CouponRepository
	merchants merchant.MerchantRepository
	external  *externalIssuer
	opts      DispatcherOptions
	logger    *slog.Logger

	queue  chan coupon.CouponID
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher 創建 Dispatcher 實例
func NewDispatcher(
	coupons coupon.CouponRepository,
	merchants merchant.MerchantRepository,
	issuer coupon.ExternalIssuer,
	opts DispatcherOptions,
) *Dispatcher {
	opts.applyDefaults()
	logger := opts.Logger.With("component", "coupon_dispatcher")

	return &Dispatcher{
		coupons:   coupons,
		merchants: merchants,
		external: &externalIssuer{
			issuer:  issuer,
			coupons: coupons,
			timeout: opts.Timeout,
			clock:   opts.Clock,
			logger:  logger,
			observe: opts.Observe,
		},
		opts:   opts,
		logger: logger,
		queue:  make(chan coupon.CouponID, opts.QueueSize),
	}
}

// Start 啟動 worker 與定期掃描；重複呼叫無效
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(d.ctx)
	}

	d.wg.Add(1)
	go d.rescanLoop(d.ctx)

	d.logger.Info("coupon dispatcher started", "workers", d.opts.Workers, "max_attempts", d.opts.MaxAttempts)
}

// Stop 停止並等待所有 goroutine 結束
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
	d.logger.Info("coupon dispatcher stopped")
}

// Enqueue 非阻塞加入佇列；停止後或佇列已滿時返回 false
func (d *Dispatcher) Enqueue(id coupon.CouponID) bool {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx != nil && ctx.Err() != nil {
		return false
	}

	select {
	case d.queue <- id:
		return true
	default:
		d.logger.Warn("coupon dispatch queue full", "coupon_id", id.String())
		return false
	}
}

// Rescan 把資料庫中仍需建立的優惠券加入佇列，返回加入的數量
func (d *Dispatcher) Rescan() (int, error) {
	pending, err := d.coupons.ListPendingExternal(nil, d.opts.MaxAttempts, d.staleBefore(), d.opts.QueueSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range pending {
		if d.Enqueue(c.CouponID()) {
			n++
		}
	}
	return n, nil
}

func (d *Dispatcher) rescanLoop(ctx context.Context) {
	defer d.wg.Done()

	d.rescan()
	ticker := time.NewTicker(d.opts.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.rescan()
		}
	}
}

func (d *Dispatcher) rescan() {
	n, err := d.Rescan()
	if err != nil {
		d.logger.Error("rescan pending coupons failed", "error", err)
		return
	}
	if n > 0 {
		d.logger.Info("pending coupons enqueued", "count", n)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.process(ctx, id)
		}
	}
}

// process 處理一張優惠券；失敗且仍有嘗試次數時延遲重新入列
func (d *Dispatcher) process(ctx context.Context, id coupon.CouponID) {
	c, err := d.coupons.FindByID(nil, id)
	if err != nil {
		if !errors.Is(err, coupon.ErrCouponNotFound) {
			d.logger.Error("load coupon failed", "coupon_id", id.String(), "error", err)
		}
		return
	}
	if !c.NeedsExternalIssue(d.opts.MaxAttempts, d.staleBefore()) {
		return
	}

	m, err := d.merchants.FindByID(nil, c.MerchantID())
	if err != nil {
		d.logger.Error("load coupon merchant failed", "coupon_id", id.String(), "error", err)
		return
	}
	if !m.IsActive() {
		return
	}

	err = d.external.issue(ctx, m, c)
	if err == nil || errors.Is(err, errExternalInFlight) {
		return
	}
	// 狀態寫回失敗時由下一次掃描撿回
	if c.ExternalStatus() != coupon.ExternalFailed {
		return
	}
	if !c.NeedsExternalIssue(d.opts.MaxAttempts, d.opts.Clock()) {
		d.logger.Error("giving up external coupon creation",
			"coupon_id", id.String(),
			"attempts", c.ExternalAttempts(),
		)
		return
	}

	delay := time.Duration(c.ExternalAttempts()) * d.opts.Backoff
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			d.Enqueue(id)
		}
	}()
}

func (d *Dispatcher) staleBefore() time.Time {
	return d.opts.Clock().Add(-d.opts.StaleAfter)
}
