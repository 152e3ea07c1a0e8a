package points

import (
	"fmt"
	"math"
	"strings"
)

// PointsAmount 積分數量值對象
// 設計原則：值對象不可變、自我驗證
type PointsAmount struct {
	value int
}

// NewPointsAmount 建構函數（checked 版本）
//
// 建構約束：積分數量必須 >= 0（不存在負數積分的概念）
func NewPointsAmount(value int) (PointsAmount, error) {
	if value < 0 {
		return PointsAmount{}, fmt.Errorf(
			"%w: attempted to create PointsAmount with value %d",
			ErrNegativePointsAmount,
			value,
		)
	}
	return PointsAmount{value: value}, nil
}

// NewPositivePointsAmount 積分異動數量（必須 > 0）
//
// Earn / Deduct 的輸入一律經過此建構函數
func NewPositivePointsAmount(value int) (PointsAmount, error) {
	if value <= 0 {
		return PointsAmount{}, ErrInvalidAmount.WithContext("amount", value)
	}
	return PointsAmount{value: value}, nil
}

// newPointsAmountUnchecked 內部建構函數（unchecked 版本）
//
// 前提條件：調用者必須保證 value >= 0
func newPointsAmountUnchecked(value int) PointsAmount {
	return PointsAmount{value: value}
}

// Value 獲取積分數量
func (p PointsAmount) Value() int {
	return p.value
}

// IsZero 是否為 0
func (p PointsAmount) IsZero() bool {
	return p.value == 0
}

// Add 相加（返回新的 PointsAmount，保持不變性）
//
// 溢位時返回 ErrPointsOverflow
func (p PointsAmount) Add(other PointsAmount) (PointsAmount, error) {
	if p.value > math.MaxInt-other.value {
		return PointsAmount{}, ErrPointsOverflow.WithContext(
			"left", p.value,
			"right", other.value,
		)
	}
	return newPointsAmountUnchecked(p.value + other.value), nil
}

// Subtract 相減（返回新的 PointsAmount）
// 業務規則：不能扣除超過當前數量的積分
func (p PointsAmount) Subtract(other PointsAmount) (PointsAmount, error) {
	if p.value < other.value {
		return PointsAmount{}, ErrInsufficientBalance.WithContext(
			"requested", other.value,
			"available", p.value,
		)
	}
	return newPointsAmountUnchecked(p.value - other.value), nil
}

// Min 返回兩者中較小者
func (p PointsAmount) Min(other PointsAmount) PointsAmount {
	if other.value < p.value {
		return other
	}
	return p
}

// Equals 比較兩個 PointsAmount 是否相等
func (p PointsAmount) Equals(other PointsAmount) bool {
	return p.value == other.value
}

// GreaterThan 判斷是否大於另一個 PointsAmount
func (p PointsAmount) GreaterThan(other PointsAmount) bool {
	return p.value > other.value
}

// LessThan 判斷是否小於另一個 PointsAmount
func (p PointsAmount) LessThan(other PointsAmount) bool {
	return p.value < other.value
}

// GreaterThanOrEqual 判斷是否大於等於另一個 PointsAmount
func (p PointsAmount) GreaterThanOrEqual(other PointsAmount) bool {
	return p.value >= other.value
}

// ===========================
// CorrelationRef 關聯參照
// ===========================

// MaxCorrelationLength 關聯參照最大長度（與資料庫欄位一致）
const MaxCorrelationLength = 128

// CorrelationRef 外部關聯參照（訂單 ID、優惠券 ID、來源交易 ID）
//
// 零值代表「無關聯」；非零值參與冪等性判斷 (帳戶, 類型, 關聯參照)
type CorrelationRef struct {
	value string
}

// NewCorrelationRef 建立關聯參照；空字串返回零值
func NewCorrelationRef(s string) (CorrelationRef, error) {
	s = strings.TrimSpace(s)
	if len(s) > MaxCorrelationLength {
		return CorrelationRef{}, ErrInvalidCorrelation.WithContext(
			"length", len(s),
			"max", MaxCorrelationLength,
		)
	}
	return CorrelationRef{value: s}, nil
}

// MustCorrelationRef 僅用於程式內常量（如 "signup"）
func MustCorrelationRef(s string) CorrelationRef {
	c, err := NewCorrelationRef(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CorrelationRef) String() string { return c.value }
func (c CorrelationRef) IsZero() bool   { return c.value == "" }

// Ptr 持久化用：零值映射為 NULL
func (c CorrelationRef) Ptr() *string {
	if c.value == "" {
		return nil
	}
	v := c.value
	return &v
}
