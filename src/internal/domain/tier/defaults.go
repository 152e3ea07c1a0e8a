package tier

import "github.com/shopspring/decimal"

// DefaultDefinitions 新商家安裝時建立的預設等級
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "Bronze", MinPoints: 0, Multiplier: decimal.NewFromInt(1), SortOrder: 1, Color: "#CD7F32"},
		{Name: "Silver", MinPoints: 500, Multiplier: decimal.RequireFromString("1.5"), SortOrder: 2, Color: "#C0C0C0"},
		{Name: "Gold", MinPoints: 2000, Multiplier: decimal.NewFromInt(2), SortOrder: 3, Color: "#FFD700"},
		{Name: "Platinum", MinPoints: 5000, Multiplier: decimal.NewFromInt(3), SortOrder: 4, Color: "#E5E4E2"},
	}
}
