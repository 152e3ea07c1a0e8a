package shared

import "context"

// TransactionContext 事務上下文介面
//
// 設計決策：可選事務參與模式（Optional Transaction Participation）
//
// 行為約定：
// - ctx != nil: 在調用者的事務中執行（事務傳播）
// - ctx == nil: 使用 auto-commit 模式（適用於單一讀操作）
//
// Repository 方法約束：
//
// ✅ ctx 必須為 non-nil（寫操作需要事務保證）：
//    - Save() / Update() / Append() / MarkSwept()
//    - FindByIDForUpdate()（行鎖只在事務內有意義）
//
// ✅ ctx 可為 nil（讀操作可選事務參與）：
//    - FindByID() / FindByCorrelation() / ListByAccount()
//
// 範例：
//
//   txManager.InTransaction(ctx, func(tx TransactionContext) error {
//       account, _ := repo.FindByIDForUpdate(tx, accountID)
//       entry, _ := account.Earn(kind, amount, description, correlation, opts)
//       if err := ledgerRepo.Append(tx, entry); err != nil {
//           return err
//       }
//       return repo.Update(tx, account)
//   })
//
// 架構原則：
// - 標記介面（Marker Interface），不暴露任何方法
// - Infrastructure Layer 負責實作具體的事務封裝（GORM）
// - Domain / Application Layer 只依賴此介面
type TransactionContext interface {
	// 標記介面：僅用於傳遞上下文，不暴露方法
}

// TransactionManager 事務管理器介面
//
// ctx 用於取消與逾時；事務中的所有 Repository 調用都繼承此 ctx
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(tx TransactionContext) error) error
}
