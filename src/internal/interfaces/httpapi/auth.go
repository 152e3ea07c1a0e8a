package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
)

// 角色
const (
	RoleMerchant = "merchant"
	RoleCustomer = "customer"
)

// Claims API 權杖內容
//
// 商家權杖帶 merchant_id；顧客權杖帶 account_id
type Claims struct {
	Role       string `json:"role"`
	MerchantID string `json:"merchant_id,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal 已驗證的呼叫者
type Principal struct {
	Role       string
	MerchantID merchant.MerchantID
	AccountID  points.AccountID
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom 取出已驗證的呼叫者
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator HS256 JWT 驗證
type Authenticator struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewAuthenticator 創建驗證器；issuer 為空時不檢查 iss
func NewAuthenticator(secret, issuer string, clockSkew time.Duration, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if clockSkew <= 0 {
		clockSkew = time.Minute
	}
	return &Authenticator{
		secret:    []byte(strings.TrimSpace(secret)),
		issuer:    issuer,
		clockSkew: clockSkew,
		now:       time.Now,
		logger:    logger,
	}
}

// Issue 簽發權杖（CLI 與測試使用）
func (a *Authenticator) Issue(p Principal, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	switch p.Role {
	case RoleMerchant:
		claims.MerchantID = p.MerchantID.String()
		claims.Subject = claims.MerchantID
	case RoleCustomer:
		claims.AccountID = p.AccountID.String()
		claims.Subject = claims.AccountID
	default:
		return "", fmt.Errorf("unknown role %q", p.Role)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Require 只允許指定角色
func (a *Authenticator) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED")
				return
			}
			p, err := a.parse(token)
			if err != nil {
				a.logger.Debug("token rejected", "error", err)
				writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED")
				return
			}
			if p.Role != role {
				writeStatus(w, http.StatusForbidden, "FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

func (a *Authenticator) parse(tokenString string) (Principal, error) {
	if len(a.secret) == 0 {
		return Principal{}, errors.New("auth secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.clockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, errors.New("token invalid")
	}

	p := Principal{Role: claims.Role}
	switch claims.Role {
	case RoleMerchant:
		id, err := merchant.MerchantIDFromString(claims.MerchantID)
		if err != nil {
			return Principal{}, fmt.Errorf("merchant_id claim: %w", err)
		}
		p.MerchantID = id
	case RoleCustomer:
		id, err := points.AccountIDFromString(claims.AccountID)
		if err != nil {
			return Principal{}, fmt.Errorf("account_id claim: %w", err)
		}
		p.AccountID = id
	default:
		return Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return p, nil
}

func extractBearer(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
