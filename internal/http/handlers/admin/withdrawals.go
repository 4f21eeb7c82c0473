package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

type reviewWithdrawalPayload struct {
	Approve   *bool  `json:"approve" binding:"required"`
	AdminNote string `json:"admin_note"`
}

// ListWithdrawals 提现申请列表
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var agentID uint
	if raw := strings.TrimSpace(c.Query("agent_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
		agentID = uint(parsed)
	}

	items, total, err := h.CommissionService.ListWithdrawals(repository.WithdrawalListFilter{
		Page:     page,
		PageSize: pageSize,
		AgentID:  agentID,
		Status:   c.Query("status"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "提现列表获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, items, pagination)
}

// ReviewWithdrawal 审核提现申请
func (h *Handler) ReviewWithdrawal(c *gin.Context) {
	withdrawalID, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || withdrawalID == 0 {
		respondError(c, response.CodeBadRequest, "提现申请 ID 无效", nil)
		return
	}

	var req reviewWithdrawalPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	withdrawal, err := h.CommissionService.ReviewWithdrawal(service.ReviewWithdrawalInput{
		WithdrawalID: uint(withdrawalID),
		Approve:      *req.Approve,
		AdminNote:    req.AdminNote,
	})
	if err != nil {
		respondReviewWithdrawalError(c, err)
		return
	}

	requestLog(c).Infow("admin_withdrawal_reviewed",
		"withdrawal_id", withdrawal.ID,
		"agent_id", withdrawal.AgentID,
		"status", withdrawal.Status,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, withdrawal)
}

func respondReviewWithdrawalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWithdrawalNotFound):
		respondError(c, response.CodeNotFound, "提现申请不存在", nil)
	case errors.Is(err, service.ErrWithdrawalStateInvalid):
		respondError(c, response.CodeBadRequest, "提现申请已处理", nil)
	case errors.Is(err, service.ErrInsufficientCommission):
		respondError(c, response.CodeBadRequest, "代理未结算佣金不足", nil)
	case errors.Is(err, service.ErrAgentNotFound):
		respondError(c, response.CodeNotFound, "代理账号不存在", nil)
	default:
		respondError(c, response.CodeInternal, "提现审核失败", err)
	}
}
