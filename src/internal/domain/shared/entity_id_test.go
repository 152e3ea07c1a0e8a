package shared_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountMarker struct{}
type tierMarker struct{}

type testAccountID = shared.EntityID[accountMarker]
type testTierID = shared.EntityID[tierMarker]

var errInvalidTestID = shared.NewDomainError("TEST_INVALID_ID", "無效的測試 ID")

// Test 1: 每次生成的 ID 都不同
func TestNewEntityID_GeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := shared.NewEntityID[accountMarker]()
		_, dup := seen[id.String()]
		require.False(t, dup, "duplicate id generated")
		seen[id.String()] = struct{}{}
	}
}

// Test 2: 合法 UUID 解析成功並保持往返一致
func TestEntityIDFromString_ValidUUID(t *testing.T) {
	// Arrange
	original := shared.NewEntityID[accountMarker]()

	// Act
	parsed, err := shared.EntityIDFromString[accountMarker](original.String(), errInvalidTestID)

	// Assert
	require.NoError(t, err)
	assert.True(t, parsed.Equals(original))
}

// Test 3: 大寫輸入統一輸出為小寫
func TestEntityIDFromString_NormalizesCase(t *testing.T) {
	upper := "550E8400-E29B-41D4-A716-446655440000"

	parsed, err := shared.EntityIDFromString[accountMarker](upper, errInvalidTestID)

	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(upper), parsed.String())
}

// Test 4: 非法輸入返回帶上下文的領域錯誤
func TestEntityIDFromString_InvalidInput_ReturnsDomainErrorWithContext(t *testing.T) {
	_, err := shared.EntityIDFromString[accountMarker]("not-a-uuid", errInvalidTestID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidTestID))

	domainErr, ok := shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "not-a-uuid", domainErr.Context["input"])
	assert.Contains(t, domainErr.Context, "parse_error")

	// 原始模板不可被修改
	assert.Empty(t, errInvalidTestID.Context)
}

// Test 5: 全零 UUID 被拒絕
func TestEntityIDFromString_NilUUID_Rejected(t *testing.T) {
	_, err := shared.EntityIDFromString[accountMarker]("00000000-0000-0000-0000-000000000000", errInvalidTestID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidTestID))
}

// Test 6: 不支援 WithContext 的錯誤模板原樣返回
func TestEntityIDFromString_PlainErrorTemplate(t *testing.T) {
	plain := errors.New("bad id")

	_, err := shared.EntityIDFromString[accountMarker]("xyz", plain)

	assert.Same(t, plain, err)
}

// Test 7: 零值 ID 為空
func TestEntityID_IsEmpty(t *testing.T) {
	var zero testAccountID
	assert.True(t, zero.IsEmpty())
	assert.False(t, shared.NewEntityID[accountMarker]().IsEmpty())
}

// Test 8: 不同 marker 的 ID 是不同類型（編譯期保證），字串可相同
func TestEntityID_TypeSafety(t *testing.T) {
	raw := shared.NewEntityID[accountMarker]().String()

	accountID, err := shared.EntityIDFromString[accountMarker](raw, errInvalidTestID)
	require.NoError(t, err)
	tierID, err := shared.EntityIDFromString[tierMarker](raw, errInvalidTestID)
	require.NoError(t, err)

	var _ testTierID = tierID
	assert.Equal(t, accountID.String(), tierID.String())
}

// Test 9: 併發生成 ID 不衝突
func TestNewEntityID_ConcurrencySafe(t *testing.T) {
	const workers = 16
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := shared.NewEntityID[accountMarker]().String()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
