package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/tianyuan-next/internal/cache"
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/gin-gonic/gin"
)

type createAgentPayload struct {
	Username                string `json:"username" binding:"required"`
	Password                string `json:"password" binding:"required"`
	Phone                   string `json:"phone"`
	DomainSuffix            string `json:"domain_suffix" binding:"required"`
	PersonalQueryPrice      string `json:"personal_query_price"`
	EnterpriseQueryMinPrice string `json:"enterprise_query_min_price"`
}

type updateAgentPayload struct {
	Password                *string `json:"password"`
	Phone                   *string `json:"phone"`
	PersonalQueryPrice      *string `json:"personal_query_price"`
	EnterpriseQueryMinPrice *string `json:"enterprise_query_min_price"`
	IsLocked                *bool   `json:"is_locked"`
}

// ListAgents 代理列表
func (h *Handler) ListAgents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	agents, total, err := h.AgentUserRepo.List(repository.AgentListFilter{
		Page:       page,
		PageSize:   pageSize,
		Keyword:    c.Query("keyword"),
		OnlyActive: c.Query("only_active") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "代理列表获取失败", err)
		return
	}

	pagination := response.NewPagination(page, pageSize, total)
	response.SuccessWithPage(c, agents, pagination)
}

// GetAgent 代理详情
func (h *Handler) GetAgent(c *gin.Context) {
	agentID, ok := parseAgentIDParam(c)
	if !ok {
		return
	}
	agent, err := h.AgentUserRepo.GetByID(agentID)
	if err != nil {
		respondError(c, response.CodeInternal, "代理获取失败", err)
		return
	}
	if agent == nil {
		respondError(c, response.CodeNotFound, "代理不存在", nil)
		return
	}
	response.Success(c, agent)
}

// CreateAgent 新建代理账号
func (h *Handler) CreateAgent(c *gin.Context) {
	var req createAgentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	username := strings.TrimSpace(req.Username)
	domainSuffix := strings.ToLower(strings.TrimSpace(req.DomainSuffix))
	if username == "" || domainSuffix == "" {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if existing, err := h.AgentUserRepo.GetByUsername(username); err != nil {
		respondError(c, response.CodeInternal, "代理创建失败", err)
		return
	} else if existing != nil {
		respondError(c, response.CodeBadRequest, "用户名已存在", nil)
		return
	}
	if existing, err := h.AgentUserRepo.GetByDomainSuffix(domainSuffix); err != nil {
		respondError(c, response.CodeInternal, "代理创建失败", err)
		return
	} else if existing != nil {
		respondError(c, response.CodeBadRequest, "代理标识已被占用", nil)
		return
	}

	if err := h.AuthService.ValidatePassword(req.Password); err != nil {
		if respondAdminPasswordPolicyError(c, err) {
			return
		}
		respondError(c, response.CodeBadRequest, "密码强度不足", err)
		return
	}
	hash, err := h.AuthService.HashPassword(req.Password)
	if err != nil {
		respondError(c, response.CodeInternal, "代理创建失败", err)
		return
	}

	personalPrice, err := parseMoneyOrZero(req.PersonalQueryPrice)
	if err != nil {
		respondError(c, response.CodeBadRequest, "价格格式错误", nil)
		return
	}
	enterprisePrice, err := parseMoneyOrZero(req.EnterpriseQueryMinPrice)
	if err != nil {
		respondError(c, response.CodeBadRequest, "价格格式错误", nil)
		return
	}

	agent := &models.AgentUser{
		Username:                username,
		Phone:                   strings.TrimSpace(req.Phone),
		PasswordHash:            hash,
		DomainSuffix:            domainSuffix,
		PersonalQueryPrice:      personalPrice,
		EnterpriseQueryMinPrice: enterprisePrice,
	}
	if err := h.AgentUserRepo.Create(agent); err != nil {
		respondError(c, response.CodeInternal, "代理创建失败", err)
		return
	}

	requestLog(c).Infow("admin_agent_created",
		"agent_id", agent.ID,
		"username", agent.Username,
		"domain_suffix", agent.DomainSuffix,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, agent)
}

// UpdateAgent 更新代理账号
func (h *Handler) UpdateAgent(c *gin.Context) {
	agentID, ok := parseAgentIDParam(c)
	if !ok {
		return
	}

	agent, err := h.AgentUserRepo.GetByID(agentID)
	if err != nil {
		respondError(c, response.CodeInternal, "代理获取失败", err)
		return
	}
	if agent == nil {
		respondError(c, response.CodeNotFound, "代理不存在", nil)
		return
	}

	var req updateAgentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	updates := make(map[string]interface{})
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.PersonalQueryPrice != nil {
		price, err := models.NewMoneyFromString(*req.PersonalQueryPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "价格格式错误", nil)
			return
		}
		updates["personal_query_price"] = price
	}
	if req.EnterpriseQueryMinPrice != nil {
		price, err := models.NewMoneyFromString(*req.EnterpriseQueryMinPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "价格格式错误", nil)
			return
		}
		updates["enterprise_query_min_price"] = price
	}
	if req.Password != nil {
		if err := h.AuthService.ValidatePassword(*req.Password); err != nil {
			if respondAdminPasswordPolicyError(c, err) {
				return
			}
			respondError(c, response.CodeBadRequest, "密码强度不足", err)
			return
		}
		hash, err := h.AuthService.HashPassword(*req.Password)
		if err != nil {
			respondError(c, response.CodeInternal, "代理更新失败", err)
			return
		}
		now := time.Now()
		updates["password_hash"] = hash
		updates["token_version"] = agent.TokenVersion + 1
		updates["token_invalid_before"] = now
	}
	if req.IsLocked != nil {
		updates["is_locked"] = *req.IsLocked
		if !*req.IsLocked {
			updates["login_error_count"] = 0
			updates["lock_until"] = nil
		}
	}
	if len(updates) == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.AgentUserRepo.Updates(agent.ID, updates); err != nil {
		respondError(c, response.CodeInternal, "代理更新失败", err)
		return
	}

	updated, err := h.AgentUserRepo.GetByID(agent.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "代理获取失败", err)
		return
	}
	_ = cache.SetAgentAuthState(c.Request.Context(), cache.BuildAgentAuthState(updated))

	requestLog(c).Infow("admin_agent_updated",
		"agent_id", agent.ID,
		"operator_admin_id", currentAdminID(c),
	)
	response.Success(c, updated)
}

func parseAgentIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "代理 ID 无效", nil)
		return 0, false
	}
	return uint(id), true
}

func parseMoneyOrZero(raw string) (models.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Money{}, nil
	}
	return models.NewMoneyFromString(raw)
}
