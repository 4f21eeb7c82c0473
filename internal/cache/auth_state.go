package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tianyuan-next/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// AdminAuthState 管理员鉴权快照
// token_invalid_before 为 Unix 秒时间戳,0 表示未设置
// 仅用于服务端 Redis 缓存,避免每次请求回表
type AdminAuthState struct {
	AdminID            uint   `json:"admin_id"`
	Username           string `json:"username"`
	TokenVersion       uint64 `json:"token_version"`
	TokenInvalidBefore int64  `json:"token_invalid_before"`
	IsSuper            bool   `json:"is_super"`
	UpdatedAt          int64  `json:"updated_at"`
}

// AgentAuthState 代理鉴权快照
type AgentAuthState struct {
	AgentID            uint   `json:"agent_id"`
	Username           string `json:"username"`
	TokenVersion       uint64 `json:"token_version"`
	TokenInvalidBefore int64  `json:"token_invalid_before"`
	IsLocked           bool   `json:"is_locked"`
	UpdatedAt          int64  `json:"updated_at"`
}

func adminAuthStateKey(adminID uint) string {
	return fmt.Sprintf("auth:admin:%d", adminID)
}

func agentAuthStateKey(agentID uint) string {
	return fmt.Sprintf("auth:agent:%d", agentID)
}

// BuildAdminAuthState 从管理员模型构建鉴权快照
func BuildAdminAuthState(admin *models.Admin) *AdminAuthState {
	if admin == nil {
		return nil
	}
	state := &AdminAuthState{
		AdminID:      admin.ID,
		Username:     admin.Username,
		TokenVersion: admin.TokenVersion,
		IsSuper:      admin.IsSuper,
		UpdatedAt:    time.Now().Unix(),
	}
	if admin.TokenInvalidBefore != nil {
		state.TokenInvalidBefore = admin.TokenInvalidBefore.Unix()
	}
	return state
}

// BuildAgentAuthState 从代理模型构建鉴权快照
func BuildAgentAuthState(agent *models.AgentUser) *AgentAuthState {
	if agent == nil {
		return nil
	}
	state := &AgentAuthState{
		AgentID:      agent.ID,
		Username:     agent.Username,
		TokenVersion: agent.TokenVersion,
		IsLocked:     agent.IsAccountLocked(time.Now()),
		UpdatedAt:    time.Now().Unix(),
	}
	if agent.TokenInvalidBefore != nil {
		state.TokenInvalidBefore = agent.TokenInvalidBefore.Unix()
	}
	return state
}

// GetAdminAuthState 获取管理员鉴权快照
func GetAdminAuthState(ctx context.Context, adminID uint) (*AdminAuthState, bool, error) {
	if adminID == 0 {
		return nil, false, nil
	}
	var state AdminAuthState
	hit, err := GetJSON(ctx, adminAuthStateKey(adminID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetAdminAuthState 写入管理员鉴权快照
func SetAdminAuthState(ctx context.Context, state *AdminAuthState) error {
	if state == nil || state.AdminID == 0 {
		return nil
	}
	return SetJSON(ctx, adminAuthStateKey(state.AdminID), state, authStateCacheTTL)
}

// DelAdminAuthState 删除管理员鉴权快照
func DelAdminAuthState(ctx context.Context, adminID uint) error {
	if adminID == 0 {
		return nil
	}
	return Del(ctx, adminAuthStateKey(adminID))
}

// GetAgentAuthState 获取代理鉴权快照
func GetAgentAuthState(ctx context.Context, agentID uint) (*AgentAuthState, bool, error) {
	if agentID == 0 {
		return nil, false, nil
	}
	var state AgentAuthState
	hit, err := GetJSON(ctx, agentAuthStateKey(agentID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetAgentAuthState 写入代理鉴权快照
func SetAgentAuthState(ctx context.Context, state *AgentAuthState) error {
	if state == nil || state.AgentID == 0 {
		return nil
	}
	return SetJSON(ctx, agentAuthStateKey(state.AgentID), state, authStateCacheTTL)
}

// DelAgentAuthState 删除代理鉴权快照
func DelAgentAuthState(ctx context.Context, agentID uint) error {
	if agentID == 0 {
		return nil
	}
	return Del(ctx, agentAuthStateKey(agentID))
}
