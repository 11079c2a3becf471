package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"custody-core/internal/handler/response"
	"custody-core/internal/service"
	"custody-core/pkg/errno"
)

// WalletHandler 余额与充值流水的只读接口
type WalletHandler struct {
	store service.Store
}

func NewWalletHandler(store service.Store) *WalletHandler {
	return &WalletHandler{store: store}
}

// CurrentUserID 从上游认证中间件取出用户 ID。
func CurrentUserID(c *gin.Context) uint64 {
	return c.GetUint64("uid")
}

type balanceView struct {
	AssetSymbol string          `json:"asset_symbol"`
	Available   decimal.Decimal `json:"available"`
	Locked      decimal.Decimal `json:"locked"`
}

// Balance godoc
// @Summary      Get the current user's balance for one asset
// @Tags         wallet
// @Produce      json
// @Param        symbol  path  string  true  "asset symbol"
// @Success      200  {object}  response.Response
// @Router       /api/v1/balances/{symbol} [get]
func (h *WalletHandler) Balance(c *gin.Context) {
	uid := CurrentUserID(c)

	asset, err := h.store.AssetBySymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	if asset == nil {
		response.Error(c, errno.ErrAssetNotFound)
		return
	}

	view := balanceView{AssetSymbol: asset.Symbol, Available: decimal.Zero, Locked: decimal.Zero}
	bal, err := h.store.Balance(c.Request.Context(), uid, asset.ID)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	if bal != nil {
		view.Available = bal.Available
		view.Locked = bal.Locked
	}

	response.Success(c, view)
}

// Deposits godoc
// @Summary      List recent deposits for the current user
// @Tags         wallet
// @Produce      json
// @Param        limit  query  int  false  "max rows"  default(100)
// @Success      200  {object}  response.Response
// @Router       /api/v1/deposits [get]
func (h *WalletHandler) Deposits(c *gin.Context) {
	uid := CurrentUserID(c)

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.store.DepositsByUser(c.Request.Context(), uid, limit)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}

	response.Success(c, rows)
}

// Assets godoc
// @Summary      List depositable assets
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/v1/assets [get]
func (h *WalletHandler) Assets(c *gin.Context) {
	rows, err := h.store.DepositableAssets(c.Request.Context())
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, rows)
}
