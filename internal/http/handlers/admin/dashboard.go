package admin

import (
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetDashboard 平台经营看板
func (h *Handler) GetDashboard(c *gin.Context) {
	dashboard, err := h.DashboardService.GetAdminDashboard(c.Request.Context(), service.DashboardQueryInput{
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
