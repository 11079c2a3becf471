package request

import "github.com/shopspring/decimal"

type CreateWithdrawalRequest struct {
	AssetSymbol string          `json:"asset_symbol" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ToAddress   string          `json:"to_address" binding:"required"`
	Network     string          `json:"network" binding:"required"`
}
