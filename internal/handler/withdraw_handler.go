package handler

import (
	"github.com/gin-gonic/gin"

	"custody-core/internal/handler/request"
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
	"custody-core/pkg/errno"
)

// WithdrawHandler 提现相关接口
type WithdrawHandler struct {
	withdrawService *service.WithdrawService
	store           service.Store
}

func NewWithdrawHandler(ws *service.WithdrawService, store service.Store) *WithdrawHandler {
	return &WithdrawHandler{withdrawService: ws, store: store}
}

// Create godoc
// @Summary      Submit a withdrawal
// @Description  Locks the user's funds and submits the transfer on chain. The call blocks until the outcome is known or the receipt wait expires.
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Param        request  body  request.CreateWithdrawalRequest  true  "withdrawal request"
// @Success      200  {object}  response.Response
// @Router       /api/v1/withdrawals [post]
func (h *WithdrawHandler) Create(c *gin.Context) {
	uid := CurrentUserID(c)

	var req request.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	result, err := h.withdrawService.Submit(c.Request.Context(), uid, service.WithdrawInput{
		AssetSymbol: req.AssetSymbol,
		Amount:      req.Amount,
		ToAddress:   req.ToAddress,
		Network:     req.Network,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// List godoc
// @Summary      List recent withdrawals for the current user
// @Tags         withdrawals
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/v1/withdrawals [get]
func (h *WithdrawHandler) List(c *gin.Context) {
	uid := CurrentUserID(c)

	rows, err := h.store.WithdrawalsByUser(c.Request.Context(), uid, 100)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}

	response.Success(c, rows)
}
