package agent

import (
	"errors"
	"strconv"

	handlershared "github.com/tianyuan-next/internal/http/handlers/shared"
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

type applyWithdrawalPayload struct {
	Amount string `json:"amount" binding:"required"`
}

// ApplyWithdrawal 申请佣金提现
func (h *Handler) ApplyWithdrawal(c *gin.Context) {
	agentID, ok := getAgentID(c)
	if !ok {
		return
	}

	var req applyWithdrawalPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	amount, err := models.NewMoneyFromString(req.Amount)
	if err != nil {
		respondError(c, response.CodeBadRequest, "提现金额格式错误", nil)
		return
	}

	withdrawal, err := h.CommissionService.ApplyWithdrawal(service.ApplyWithdrawalInput{
		AgentID: agentID,
		Amount:  amount,
	})
	if err != nil {
		respondApplyWithdrawalError(c, err)
		return
	}

	requestLog(c).Infow("agent_withdrawal_applied",
		"agent_id", agentID,
		"withdrawal_id", withdrawal.ID,
		"amount", withdrawal.WithdrawalAmount.String(),
	)
	response.Success(c, withdrawal)
}

// ListWithdrawals 本代理的提现记录
func (h *Handler) ListWithdrawals(c *gin.Context) {
	agentID, ok := getAgentID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	items, total, err := h.CommissionService.ListWithdrawals(repository.WithdrawalListFilter{
		Page:     page,
		PageSize: pageSize,
		AgentID:  agentID,
		Status:   c.Query("status"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "提现记录获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, items, pagination)
}

func respondApplyWithdrawalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWithdrawalAmountInvalid):
		respondError(c, response.CodeBadRequest, "提现金额必须大于 0", nil)
	case errors.Is(err, service.ErrWithdrawalInFlight):
		var inFlight *service.WithdrawalInFlightError
		if errors.As(err, &inFlight) {
			response.ErrorWithData(c, response.CodeBadRequest, "已有待审核的提现申请", gin.H{
				"pending_withdrawal_id": inFlight.PendingID,
				"pending_amount":        inFlight.PendingAmount,
			})
			return
		}
		respondError(c, response.CodeBadRequest, "已有待审核的提现申请", nil)
	case errors.Is(err, service.ErrInsufficientCommission):
		respondError(c, response.CodeBadRequest, "未结算佣金不足", nil)
	case errors.Is(err, service.ErrAgentNotFound):
		respondError(c, response.CodeNotFound, "代理账号不存在", nil)
	default:
		respondError(c, response.CodeInternal, "提现申请失败", err)
	}
}
