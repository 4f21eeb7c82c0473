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

type refundOrderPayload struct {
	Reason string `json:"reason"`
}

// ListOrders 订单列表
func (h *Handler) ListOrders(c *gin.Context) {
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

	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	orders, total, err := h.OrderService.ListAdminOrders(repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		AgentID:     agentID,
		Status:      c.Query("status"),
		OrderNo:     c.Query("order_no"),
		QueryType:   c.Query("query_type"),
		Phone:       c.Query("phone"),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "订单列表获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, orders, pagination)
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	order, err := h.OrderRepo.GetByOrderNo(orderNo)
	if err != nil {
		respondError(c, response.CodeInternal, "订单查询失败", err)
		return
	}
	if order == nil {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return
	}
	response.Success(c, order)
}

// RefundOrder 对已支付订单发起全额退款
func (h *Handler) RefundOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))

	var req refundOrderPayload
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.PaymentService.RefundOrder(c.Request.Context(), orderNo, req.Reason)
	if err != nil {
		respondRefundError(c, err)
		return
	}

	requestLog(c).Infow("admin_order_refund_initiated",
		"order_no", orderNo,
		"refund_no", result.RefundNo,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, result)
}

// RequeryOrder 对失败订单重新触发查询
func (h *Handler) RequeryOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	order, err := h.OrderRepo.GetByOrderNo(orderNo)
	if err != nil {
		respondError(c, response.CodeInternal, "订单查询失败", err)
		return
	}
	if order == nil {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return
	}

	if err := h.FulfillmentService.TriggerQuery(c.Request.Context(), order.ID); err != nil {
		if errors.Is(err, service.ErrOrderStateInvalid) {
			respondError(c, response.CodeBadRequest, "订单状态不允许重新查询", nil)
			return
		}
		respondError(c, response.CodeInternal, "重新查询触发失败", err)
		return
	}

	requestLog(c).Infow("admin_order_requery_triggered",
		"order_no", orderNo,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, gin.H{"order_no": orderNo, "triggered": true})
}

func respondRefundError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(c, response.CodeNotFound, "订单不存在", nil)
	case errors.Is(err, service.ErrPaymentNotPaid):
		respondError(c, response.CodeBadRequest, "订单未支付，无法退款", nil)
	case errors.Is(err, service.ErrRefundNotAllowed):
		respondError(c, response.CodeBadRequest, "订单当前状态不允许退款", nil)
	case errors.Is(err, service.ErrPaymentConfigMissing):
		respondError(c, response.CodeBadRequest, "支付渠道未配置", nil)
	default:
		respondError(c, response.CodeInternal, "退款发起失败", err)
	}
}
