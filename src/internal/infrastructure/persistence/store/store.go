// Package store 組裝帳本儲存層：資料表遷移與所有 Repository
package store

import (
	"fmt"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/coupon"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	couponrepo "github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/coupon"
	customerrepo "github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/customer"
	merchantrepo "github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/merchant"
	pointsrepo "github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/points"
	tierrepo "github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/tier"
	"gorm.io/gorm"
)

// Models 所有需要遷移的 GORM 模型
func Models() []interface{} {
	return []interface{}{
		&merchantrepo.MerchantGORM{},
		&tierrepo.TierGORM{},
		&pointsrepo.AccountGORM{},
		&pointsrepo.LedgerEntryGORM{},
		&couponrepo.CouponGORM{},
		&customerrepo.CustomerGORM{},
	}
}

// Migrate 建立或更新資料表與索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Store 帳本儲存層的所有依賴
type Store struct {
	DB        *gorm.DB
	TxManager *persistence.GORMTransactionManager
	Merchants merchant.MerchantRepository
	Tiers     tier.TierRepository
	Accounts  points.AccountRepository
	Ledger    points.LedgerRepository
	Coupons   coupon.CouponRepository
	Customers customer.CustomerRepository
}

// New 以既有連線建立所有 Repository
func New(db *gorm.DB) *Store {
	return &Store{
		DB:        db,
		TxManager: persistence.NewGORMTransactionManager(db),
		Merchants: merchantrepo.NewMerchantRepository(db),
		Tiers:     tierrepo.NewTierRepository(db),
		Accounts:  pointsrepo.NewAccountRepository(db),
		Ledger:    pointsrepo.NewLedgerRepository(db),
		Coupons:   couponrepo.NewCouponRepository(db),
		Customers: customerrepo.NewCustomerRepository(db),
	}
}

// Ping 健康檢查
func (s *Store) Ping() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
