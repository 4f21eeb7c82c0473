package admin

import (
	"strconv"
	"strings"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/models"

	"github.com/gin-gonic/gin"
)

type createExternalConfigPayload struct {
	ConfigType  string      `json:"config_type" binding:"required"`
	ConfigName  string      `json:"config_name" binding:"required"`
	Credentials models.JSON `json:"credentials" binding:"required"`
}

type updateExternalConfigPayload struct {
	ConfigName  *string      `json:"config_name"`
	Credentials *models.JSON `json:"credentials"`
	IsActive    *bool        `json:"is_active"`
}

func validExternalConfigType(configType string) bool {
	switch configType {
	case models.ExternalConfigTianyuan,
		models.ExternalConfigAliyunSms,
		models.ExternalConfigWechatOAuth,
		models.ExternalConfigAlipayPayment,
		models.ExternalConfigWechatPayment:
		return true
	}
	return false
}

// maskExternalConfig 列表与详情不回传凭证内容,仅回传凭证字段名。
func maskExternalConfig(config *models.ExternalApiConfig) gin.H {
	keys := make([]string, 0, len(config.Credentials))
	for key := range config.Credentials {
		keys = append(keys, key)
	}
	return gin.H{
		"id":              config.ID,
		"config_type":     config.ConfigType,
		"config_name":     config.ConfigName,
		"owner_id":        config.OwnerID,
		"owner_type":      config.OwnerType,
		"is_active":       config.IsActive,
		"credential_keys": keys,
		"created_at":      config.CreatedAt,
		"updated_at":      config.UpdatedAt,
	}
}

// ListExternalConfigs 外部服务配置列表
func (h *Handler) ListExternalConfigs(c *gin.Context) {
	configs, err := h.ExternalApiConfigRepo.ListByOwner(currentAdminID(c), constants.OwnerTypeAdmin)
	if err != nil {
		respondError(c, response.CodeInternal, "配置列表获取失败", err)
		return
	}

	items := make([]gin.H, 0, len(configs))
	for i := range configs {
		items = append(items, maskExternalConfig(&configs[i]))
	}
	response.Success(c, items)
}

// CreateExternalConfig 新建外部服务配置
func (h *Handler) CreateExternalConfig(c *gin.Context) {
	var req createExternalConfigPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if !validExternalConfigType(req.ConfigType) {
		respondError(c, response.CodeBadRequest, "配置类型无效", nil)
		return
	}
	if len(req.Credentials) == 0 {
		respondError(c, response.CodeBadRequest, "凭证不能为空", nil)
		return
	}

	config := &models.ExternalApiConfig{
		ConfigType:  req.ConfigType,
		ConfigName:  strings.TrimSpace(req.ConfigName),
		Credentials: req.Credentials,
		OwnerID:     currentAdminID(c),
		OwnerType:   constants.OwnerTypeAdmin,
		IsActive:    true,
	}
	if err := h.ExternalApiConfigRepo.Create(config); err != nil {
		respondError(c, response.CodeInternal, "配置创建失败", err)
		return
	}

	requestLog(c).Infow("admin_external_config_created",
		"config_id", config.ID,
		"config_type", config.ConfigType,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, maskExternalConfig(config))
}

// UpdateExternalConfig 更新外部服务配置
func (h *Handler) UpdateExternalConfig(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "配置 ID 无效", nil)
		return
	}

	config, err := h.ExternalApiConfigRepo.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "配置获取失败", err)
		return
	}
	if config == nil {
		respondError(c, response.CodeNotFound, "配置不存在", nil)
		return
	}

	var req updateExternalConfigPayload
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
	if req.Credentials != nil {
		if len(*req.Credentials) == 0 {
			respondError(c, response.CodeBadRequest, "凭证不能为空", nil)
			return
		}
		updates["credentials"] = *req.Credentials
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.ExternalApiConfigRepo.Updates(config.ID, updates); err != nil {
		respondError(c, response.CodeInternal, "配置更新失败", err)
		return
	}

	updated, err := h.ExternalApiConfigRepo.GetByID(config.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "配置获取失败", err)
		return
	}
	response.Success(c, maskExternalConfig(updated))
}
