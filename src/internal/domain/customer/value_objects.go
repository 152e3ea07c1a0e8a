package customer

import (
	"regexp"
	"strings"
	"unicode"
)

// ===========================
// ExternalCustomerID Value Object
// ===========================

// ExternalCustomerID 外部商務平台的顧客 ID
//
// 業務規則：
// 1. 不能為空
// 2. 不含空白字元
// 3. 最長 128 字元（與積分帳戶的 customerRef 欄位一致）
//
// 同一商家內唯一；同一 ID 在不同商家代表不同顧客
type ExternalCustomerID struct {
	value string
}

const maxExternalCustomerIDLength = 128

// NewExternalCustomerID 創建外部顧客 ID（Checked Constructor）
func NewExternalCustomerID(value string) (ExternalCustomerID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ExternalCustomerID{}, ErrInvalidExternalCustomerID.WithContext(
			"external_id", value,
			"reason", "cannot be empty",
		)
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return ExternalCustomerID{}, ErrInvalidExternalCustomerID.WithContext(
			"external_id", value,
			"reason", "must not contain whitespace",
		)
	}
	if len(value) > maxExternalCustomerIDLength {
		return ExternalCustomerID{}, ErrInvalidExternalCustomerID.WithContext(
			"external_id", value,
			"reason", "too long",
		)
	}
	return ExternalCustomerID{value: value}, nil
}

func (e ExternalCustomerID) String() string { return e.value }

func (e ExternalCustomerID) Equals(other ExternalCustomerID) bool { return e.value == other.value }

func (e ExternalCustomerID) IsZero() bool { return e.value == "" }

// ===========================
// PhoneNumber Value Object
// ===========================

// PhoneNumber 手機號碼值對象
//
// 業務規則：
// 1. 正規化：移除空白、連字號、括號
// 2. 正規化後為 8 到 15 位數字，可有 "+" 前綴（E.164 範圍）
//
// 零值代表「未提供」
type PhoneNumber struct {
	value string
}

var (
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// NewPhoneNumber 創建手機號碼值對象（Checked Constructor）
//
// 錯誤範例：
// - "12345" (太短) → ErrInvalidPhoneNumberFormat
// - "+966-abc" (非數字) → ErrInvalidPhoneNumberFormat
func NewPhoneNumber(value string) (PhoneNumber, error) {
	normalized := phoneStripper.Replace(strings.TrimSpace(value))
	if !phonePattern.MatchString(normalized) {
		return PhoneNumber{}, ErrInvalidPhoneNumberFormat.WithContext(
			"phone", value,
			"reason", "must be 8-15 digits with optional + prefix",
		)
	}
	return PhoneNumber{value: normalized}, nil
}

// String 返回正規化後的號碼
func (p PhoneNumber) String() string {
	return p.value
}

// Equals 比較兩個手機號碼是否相等
func (p PhoneNumber) Equals(other PhoneNumber) bool {
	return p.value == other.value
}

// IsZero 檢查是否為零值
func (p PhoneNumber) IsZero() bool {
	return p.value == ""
}
