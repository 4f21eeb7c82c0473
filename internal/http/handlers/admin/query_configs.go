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

type createQueryConfigPayload struct {
	ConfigName     string `json:"config_name" binding:"required"`
	Category       string `json:"category"`
	CustomerPrice  string `json:"customer_price" binding:"required"`
	APICombination []uint `json:"api_combination" binding:"required"`
}

type updateQueryConfigPayload struct {
	ConfigName     *string `json:"config_name"`
	Category       *string `json:"category"`
	CustomerPrice  *string `json:"customer_price"`
	APICombination *[]uint `json:"api_combination"`
	IsActive       *bool   `json:"is_active"`
}

func validQueryCategory(category string) bool {
	switch category {
	case "", constants.QueryCategoryTwoFactor, constants.QueryCategoryThreeFactor, constants.QueryCategoryFace:
		return true
	}
	return false
}

// ListQueryConfigs 查询产品配置列表
func (h *Handler) ListQueryConfigs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	configs, total, err := h.QueryConfigRepo.List(repository.QueryConfigListFilter{
		Page:       page,
		PageSize:   pageSize,
		Category:   c.Query("category"),
		Search:     c.Query("search"),
		OnlyActive: c.Query("only_active") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "配置列表获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, configs, pagination)
}

// CreateQueryConfig 新建查询产品配置
func (h *Handler) CreateQueryConfig(c *gin.Context) {
	var req createQueryConfigPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if !validQueryCategory(req.Category) {
		respondError(c, response.CodeBadRequest, "查询类别无效", nil)
		return
	}
	price, err := models.NewMoneyFromString(req.CustomerPrice)
	if err != nil {
		respondError(c, response.CodeBadRequest, "价格格式错误", nil)
		return
	}
	if len(req.APICombination) == 0 {
		respondError(c, response.CodeBadRequest, "接口组合不能为空", nil)
		return
	}

	combination := make(models.IntArray, 0, len(req.APICombination))
	for _, id := range req.APICombination {
		apiConfig, err := h.ApiConfigRepo.GetByID(id)
		if err != nil || apiConfig == nil {
			respondError(c, response.CodeBadRequest, "接口组合包含无效接口", err)
			return
		}
		combination = append(combination, id)
	}

	config := &models.QueryConfig{
		ConfigName:     strings.TrimSpace(req.ConfigName),
		Category:       req.Category,
		CustomerPrice:  price,
		APICombination: combination,
		OwnerID:        currentAdminID(c),
		OwnerType:      constants.OwnerTypeAdmin,
		IsActive:       true,
	}
	if err := h.QueryConfigRepo.Create(config); err != nil {
		respondError(c, response.CodeInternal, "配置创建失败", err)
		return
	}

	requestLog(c).Infow("admin_query_config_created",
		"config_id", config.ID,
		"config_name", config.ConfigName,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, config)
}

// UpdateQueryConfig 更新查询产品配置
func (h *Handler) UpdateQueryConfig(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "配置 ID 无效", nil)
		return
	}

	config, err := h.QueryConfigRepo.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "配置获取失败", err)
		return
	}
	if config == nil {
		respondError(c, response.CodeNotFound, "配置不存在", nil)
		return
	}

	var req updateQueryConfigPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	updates := make(map[string]interface{})
	if req.ConfigName != nil {
		name := strings.TrimSpace(*req.ConfigName)
		if name == "" {
			respondError(c, response.CodeBadRequest, "配置名称不能为空", nil)
			return
		}
		updates["config_name"] = name
	}
	if req.Category != nil {
		if !validQueryCategory(*req.Category) {
			respondError(c, response.CodeBadRequest, "查询类别无效", nil)
			return
		}
		updates["category"] = *req.Category
	}
	if req.CustomerPrice != nil {
		price, err := models.NewMoneyFromString(*req.CustomerPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "价格格式错误", nil)
			return
		}
		updates["customer_price"] = price
	}
	if req.APICombination != nil {
		if len(*req.APICombination) == 0 {
			respondError(c, response.CodeBadRequest, "接口组合不能为空", nil)
			return
		}
		combination := make(models.IntArray, 0, len(*req.APICombination))
		for _, apiID := range *req.APICombination {
			apiConfig, err := h.ApiConfigRepo.GetByID(apiID)
			if err != nil || apiConfig == nil {
				respondError(c, response.CodeBadRequest, "接口组合包含无效接口", err)
				return
			}
			combination = append(combination, apiID)
		}
		updates["api_combination"] = combination
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.QueryConfigRepo.Updates(config.ID, updates); err != nil {
		respondError(c, response.CodeInternal, "配置更新失败", err)
		return
	}

	updated, err := h.QueryConfigRepo.GetByID(config.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "配置获取失败", err)
		return
	}
	response.Success(c, updated)
}
