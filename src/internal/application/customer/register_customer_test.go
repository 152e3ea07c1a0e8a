package customer

import (
	"context"
	"errors"
	"testing"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===========================
// Mocks
// ===========================

// MockCustomerRepository mock implementation of CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx shared.TransactionContext, c *customer.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx shared.TransactionContext, id customer.CustomerID) (*customer.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByExternalID(ctx shared.TransactionContext, merchantID merchant.MerchantID, externalID customer.ExternalCustomerID) (*customer.Customer, error) {
	args := m.Called(ctx, merchantID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

// MockTransactionManager mock implementation of TransactionManager
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(tx shared.TransactionContext) error) error {
	return fn(nil)
}

func existingCustomer(t *testing.T, merchantID merchant.MerchantID, profile customer.Profile) *customer.Customer {
	t.Helper()
	ext, err := customer.NewExternalCustomerID("c-100")
	require.NoError(t, err)
	c, err := customer.NewCustomer(merchantID, ext, profile)
	require.NoError(t, err)
	return c
}

// ===========================
// Tests
// ===========================

// Test 1: 新顧客建立成功
func TestRegisterCustomerUseCase_Execute_Created(t *testing.T) {
	// Arrange
	mockRepo := new(MockCustomerRepository)
	mockTxManager := new(MockTransactionManager)
	useCase := NewRegisterCustomerUseCase(mockRepo, mockTxManager)
	merchantID := merchant.NewMerchantID()

	mockRepo.On("FindByExternalID", mock.Anything, merchantID, mock.Anything).Return(nil, customer.ErrCustomerNotFound)
	mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	// Act
	result, err := useCase.Execute(context.Background(), RegisterCustomerCommand{
		MerchantID: merchantID,
		ExternalID: "c-100",
		Name:       "Sara",
		Email:      "SARA@example.com",
		Phone:      "+966 50 123 4567",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "c-100", result.ExternalID)
	assert.NotEmpty(t, result.CustomerID)

	saved := mockRepo.Calls[1].Arguments.Get(1).(*customer.Customer)
	assert.Equal(t, "sara@example.com", saved.Email())
	assert.Equal(t, "+966501234567", saved.Phone().String())
	mockRepo.AssertExpectations(t)
}

// Test 2: 既有顧客只更新非空欄位
func TestRegisterCustomerUseCase_Execute_UpdatesExisting(t *testing.T) {
	// Arrange
	mockRepo := new(MockCustomerRepository)
	mockTxManager := new(MockTransactionManager)
	useCase := NewRegisterCustomerUseCase(mockRepo, mockTxManager)
	merchantID := merchant.NewMerchantID()
	existing := existingCustomer(t, merchantID, customer.Profile{Name: "Old", Email: "keep@example.com"})

	mockRepo.On("FindByExternalID", mock.Anything, merchantID, mock.Anything).Return(existing, nil)
	mockRepo.On("Save", mock.Anything, existing).Return(nil)

	// Act
	result, err := useCase.Execute(context.Background(), RegisterCustomerCommand{
		MerchantID: merchantID,
		ExternalID: "c-100",
		Name:       "New",
	})

	// Assert
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.True(t, result.Changed)
	assert.Equal(t, "New", existing.Name())
	assert.Equal(t, "keep@example.com", existing.Email())
}

// Test 3: 資料沒有變更時不寫入
func TestRegisterCustomerUseCase_Execute_NoChange_SkipsSave(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	mockTxManager := new(MockTransactionManager)
	useCase := NewRegisterCustomerUseCase(mockRepo, mockTxManager)
	merchantID := merchant.NewMerchantID()
	existing := existingCustomer(t, merchantID, customer.Profile{Name: "Same"})

	mockRepo.On("FindByExternalID", mock.Anything, merchantID, mock.Anything).Return(existing, nil)

	result, err := useCase.Execute(context.Background(), RegisterCustomerCommand{
		MerchantID: merchantID,
		ExternalID: "c-100",
		Name:       "Same",
	})

	require.NoError(t, err)
	assert.False(t, result.Changed)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// Test 4: 無效的外部 ID
func TestRegisterCustomerUseCase_Execute_InvalidExternalID_ReturnsError(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	mockTxManager := new(MockTransactionManager)
	useCase := NewRegisterCustomerUseCase(mockRepo, mockTxManager)

	result, err := useCase.Execute(context.Background(), RegisterCustomerCommand{
		MerchantID: merchant.NewMerchantID(),
		ExternalID: "has space",
	})

	assert.ErrorIs(t, err, customer.ErrInvalidExternalCustomerID)
	assert.Nil(t, result)
	mockRepo.AssertNotCalled(t, "FindByExternalID", mock.Anything, mock.Anything, mock.Anything)
}

// Test 5: 並發建立輸掉唯一約束後改走更新路徑
func TestRegisterCustomerUseCase_Execute_LostInsertRace_Retries(t *testing.T) {
	// Arrange
	mockRepo := new(MockCustomerRepository)
	mockTxManager := new(MockTransactionManager)
	useCase := NewRegisterCustomerUseCase(mockRepo, mockTxManager)
	merchantID := merchant.NewMerchantID()
	winner := existingCustomer(t, merchantID, customer.Profile{Name: "Winner"})

	mockRepo.On("FindByExternalID", mock.Anything, merchantID, mock.Anything).Return(nil, customer.ErrCustomerNotFound).Once()
	mockRepo.On("Save", mock.Anything, mock.Anything).Return(customer.ErrCustomerAlreadyExists).Once()
	mockRepo.On("FindByExternalID", mock.Anything, merchantID, mock.Anything).Return(winner, nil).Once()
	mockRepo.On("Save", mock.Anything, winner).Return(nil).Once()

	// Act
	result, err := useCase.Execute(context.Background(), RegisterCustomerCommand{
		MerchantID: merchantID,
		ExternalID: "c-100",
		Name:       "Loser",
	})

	// Assert
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, winner.CustomerID().String(), result.CustomerID)
	assert.Equal(t, "Loser", winner.Name())
	mockRepo.AssertExpectations(t)
}

// Test 6: Repository 查詢失敗
func TestRegisterCustomerUseCase_Execute_FindFails_ReturnsError(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	mockTxManager := new(MockTransactionManager)
	useCase := NewRegisterCustomerUseCase(mockRepo, mockTxManager)
	dbError := errors.New("database connection failed")

	mockRepo.On("FindByExternalID", mock.Anything, mock.Anything, mock.Anything).Return(nil, dbError)

	result, err := useCase.Execute(context.Background(), RegisterCustomerCommand{
		MerchantID: merchant.NewMerchantID(),
		ExternalID: "c-100",
	})

	assert.Equal(t, dbError, err)
	assert.Nil(t, result)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// Test 7: 查詢顧客資料
func TestGetCustomerUseCase_Execute(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	useCase := NewGetCustomerUseCase(mockRepo)
	merchantID := merchant.NewMerchantID()
	existing := existingCustomer(t, merchantID, customer.Profile{Name: "Sara", Phone: "0501234567"})

	mockRepo.On("FindByExternalID", mock.Anything, merchantID, existing.ExternalID()).Return(existing, nil)

	view, err := useCase.Execute(context.Background(), GetCustomerQuery{MerchantID: merchantID, ExternalID: "c-100"})

	require.NoError(t, err)
	assert.Equal(t, "Sara", view.Name)
	assert.Equal(t, "0501234567", view.Phone)
}
