package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ===========================
// Sweep Scheduler
// ===========================

// Scheduler 以固定間隔觸發 Sweep
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	onReport func(*Report, error)
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.Mutex // 同一時間只有一次掃描
}

// NewScheduler 創建 Scheduler；onReport 可為 nil（供 metrics 使用）
func NewScheduler(sweeper *Sweeper, interval time.Duration, onReport func(*Report, error), logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		onReport: onReport,
		logger:   logger.With("component", "expiry_scheduler"),
	}
}

// Start 啟動背景掃描；重複呼叫無效
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.Info("expiry scheduler started", "interval", s.interval.String())
}

// Stop 停止並等待進行中的掃描結束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("expiry scheduler stopped")
}

// RunOnce 立即執行一次掃描（管理 API 與 CLI 使用）
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	report, err := s.sweeper.Sweep(ctx)
	if s.onReport != nil {
		s.onReport(report, err)
	}
	return report, err
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduled expiry sweep failed", "error", err)
			}
		}
	}
}
