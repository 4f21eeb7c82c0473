package admin

import (
	"strconv"
	"strings"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/gin-gonic/gin"
)

type createApiConfigPayload struct {
	APIName        string      `json:"api_name" binding:"required"`
	APICode        string      `json:"api_code" binding:"required"`
	CostPrice      string      `json:"cost_price" binding:"required"`
	AdminCostPrice string      `json:"admin_cost_price"`
	RequiresMobile bool        `json:"requires_mobile"`
	ParamConfig    models.JSON `json:"param_config"`
}

type updateApiConfigPayload struct {
	APIName        *string      `json:"api_name"`
	CostPrice      *string      `json:"cost_price"`
	AdminCostPrice *string      `json:"admin_cost_price"`
	RequiresMobile *bool        `json:"requires_mobile"`
	ParamConfig    *models.JSON `json:"param_config"`
	IsActive       *bool        `json:"is_active"`
}

// ListApiConfigs 上游接口配置列表
func (h *Handler) ListApiConfigs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	configs, total, err := h.ApiConfigRepo.List(repository.APIConfigListFilter{
		Page:       page,
		PageSize:   pageSize,
		Search:     c.Query("search"),
		OnlyActive: c.Query("only_active") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "接口列表获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, configs, pagination)
}

// CreateApiConfig 新建上游接口配置
func (h *Handler) CreateApiConfig(c *gin.Context) {
	var req createApiConfigPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	code := strings.TrimSpace(req.APICode)
	existing, err := h.ApiConfigRepo.GetByCode(code)
	if err != nil {
		respondError(c, response.CodeInternal, "接口创建失败", err)
		return
	}
	if existing != nil {
		respondError(c, response.CodeBadRequest, "接口编号已存在", nil)
		return
	}

	costPrice, err := models.NewMoneyFromString(req.CostPrice)
	if err != nil {
		respondError(c, response.CodeBadRequest, "成本价格格式错误", nil)
		return
	}
	adminCostPrice := costPrice
	if strings.TrimSpace(req.AdminCostPrice) != "" {
		adminCostPrice, err = models.NewMoneyFromString(req.AdminCostPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "成本价格格式错误", nil)
			return
		}
	}

	config := &models.ApiConfig{
		APIName:        strings.TrimSpace(req.APIName),
		APICode:        code,
		OwnerID:        currentAdminID(c),
		OwnerType:      constants.OwnerTypeAdmin,
		CostPrice:      costPrice,
		AdminCostPrice: adminCostPrice,
		RequiresMobile: req.RequiresMobile,
		ParamConfig:    req.ParamConfig,
		IsActive:       true,
	}
	if err := h.ApiConfigRepo.Create(config); err != nil {
		respondError(c, response.CodeInternal, "接口创建失败", err)
		return
	}

	requestLog(c).Infow("admin_api_config_created",
		"api_config_id", config.ID,
		"api_code", config.APICode,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, config)
}

// UpdateApiConfig 更新上游接口配置
func (h *Handler) UpdateApiConfig(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "接口 ID 无效", nil)
		return
	}

	config, err := h.ApiConfigRepo.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "接口获取失败", err)
		return
	}
	if config == nil {
		respondError(c, response.CodeNotFound, "接口不存在", nil)
		return
	}

	var req updateApiConfigPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	updates := make(map[string]interface{})
	if req.APIName != nil {
		name := strings.TrimSpace(*req.APIName)
		if name == "" {
			respondError(c, response.CodeBadRequest, "接口名称不能为空", nil)
			return
		}
		updates["api_name"] = name
	}
	if req.CostPrice != nil {
		price, err := models.NewMoneyFromString(*req.CostPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "成本价格格式错误", nil)
			return
		}
		updates["cost_price"] = price
	}
	if req.AdminCostPrice != nil {
		price, err := models.NewMoneyFromString(*req.AdminCostPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "成本价格格式错误", nil)
			return
		}
		updates["admin_cost_price"] = price
	}
	if req.RequiresMobile != nil {
		updates["requires_mobile"] = *req.RequiresMobile
	}
	if req.ParamConfig != nil {
		updates["param_config"] = *req.ParamConfig
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.ApiConfigRepo.Updates(config.ID, updates); err != nil {
		respondError(c, response.CodeInternal, "接口更新失败", err)
		return
	}

	updated, err := h.ApiConfigRepo.GetByID(config.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "接口获取失败", err)
		return
	}
	response.Success(c, updated)
}
