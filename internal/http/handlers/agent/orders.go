package agent

import (
	"strconv"

	handlershared "github.com/tianyuan-next/internal/http/handlers/shared"
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListOrders 代理名下订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	agentID, ok := getAgentID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	orders, total, err := h.OrderService.ListAdminOrders(repository.OrderListFilter{
		Page:      page,
		PageSize:  pageSize,
		AgentID:   agentID,
		Status:    c.Query("status"),
		OrderNo:   c.Query("order_no"),
		QueryType: c.Query("query_type"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "订单列表获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, orders, pagination)
}

// GetDashboard 代理经营看板
func (h *Handler) GetDashboard(c *gin.Context) {
	agentID, ok := getAgentID(c)
	if !ok {
		return
	}

	dashboard, err := h.DashboardService.GetAgentDashboard(c.Request.Context(), agentID, service.DashboardQueryInput{
		Period:    c.Query("period"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "看板数据获取失败", err)
		return
	}
	response.Success(c, dashboard)
}
