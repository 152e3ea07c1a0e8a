// Package httpapi 提供商家後台、顧客端與 Salla Webhook 的 HTTP 介面
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/commerce"
	customerapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/expiry"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	merchantapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/redemption"
)

// SweepRunner 立即執行一次過期掃描
type SweepRunner interface {
	RunOnce(ctx context.Context) (*expiry.Report, error)
}

// HTTPObserver 記錄請求延遲與狀態碼
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

// Dependencies 路由需要的 Use Case 與設定
type Dependencies struct {
	Engine     *ledger.Engine
	Redemption *redemption.Service
	Merchants  *merchantapp.Service
	Stats      *merchantapp.StatsUseCase
	Customers  *customerapp.GetCustomerUseCase
	Commerce   *commerce.Adapter
	Sweeper    SweepRunner // nil = 不提供手動掃描

	Auth          *Authenticator
	WebhookSecret string
	AllowUnsigned bool // 開發環境：未設定密鑰時接受未簽章的 Webhook

	Health         func() error
	Metrics        HTTPObserver
	MetricsHandler http.Handler // nil = 不暴露 /metrics
	CORSOrigins    []string
	Logger         *slog.Logger
}

type handler struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewRouter 組裝所有路由
func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handler{deps: deps, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Post("/webhooks/salla", h.sallaWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Require(RoleMerchant))

			r.Get("/merchant", h.getMerchant)
			r.Get("/settings", h.getSettings)
			r.Put("/settings", h.updateSettings)

			r.Route("/tiers", func(r chi.Router) {
				r.Get("/", h.listTiers)
				r.Post("/", h.createTier)
				r.Put("/{tierID}", h.updateTier)
				r.Delete("/{tierID}", h.deleteTier)
			})

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.listAccounts)
				r.Get("/by-customer/{customerRef}", h.findAccountByCustomer)
				r.Route("/{accountID}", func(r chi.Router) {
					r.Get("/", h.getAccount)
					r.Get("/transactions", h.accountTransactions)
					r.Get("/coupons", h.accountCoupons)
					r.Post("/points/add", h.addPoints)
					r.Post("/points/deduct", h.deductPoints)
					r.Post("/recompute-tier", h.recomputeTier)
					r.Get("/verify", h.verifyAccount)
				})
			})

			r.Get("/transactions", h.merchantTransactions)
			r.Get("/stats", h.merchantStats)
			r.Get("/stats/top-customers", h.topCustomers)

			r.Get("/customers/{externalID}", h.getCustomer)

			r.Get("/coupons", h.listCoupons)
			r.Post("/coupons/{code}/use", h.useCoupon)

			r.Post("/expiry/sweep", h.runSweep)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(deps.Auth.Require(RoleCustomer))

			r.Get("/balance", h.myBalance)
			r.Get("/transactions", h.myTransactions)
			r.Get("/coupons", h.myCoupons)
			r.Post("/redeem", h.redeem)
		})
	})

	return r
}

// instrument 以路由樣板（而非實際路徑）記錄指標
func (h *handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.deps.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.deps.Metrics.ObserveHTTP(route, r.Method, status, time.Since(start))
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
