package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tianyuan-next/internal/cache"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/repository"
)

const (
	dashboardCacheTTL      = 45 * time.Second
	dashboardCustomMaxDays = 90
	dashboardRankingLimit  = 10
)

// DashboardService 运营看板服务
// 聚合后台首页与代理工作台的经营数据。
type DashboardService struct {
	repo repository.DashboardRepository
}

// NewDashboardService 创建看板服务
func NewDashboardService(repo repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// DashboardQueryInput 看板查询输入
// Period 支持 today/7d/30d/custom,custom 时使用 StartDate/EndDate(YYYY-MM-DD)。
type DashboardQueryInput struct {
	Period    string
	StartDate string
	EndDate   string
}

// AdminDashboard 平台看板
type AdminDashboard struct {
	Period     string                                `json:"period"`
	StartAt    time.Time                             `json:"start_at"`
	EndAt      time.Time                             `json:"end_at"`
	Overview   repository.DashboardOverviewRow       `json:"overview"`
	Trends     []repository.DashboardOrderTrendRow   `json:"trends"`
	TopQueries []repository.DashboardQueryTypeRow    `json:"top_queries"`
	TopAgents  []repository.DashboardAgentRankingRow `json:"top_agents"`
}

// AgentDashboard 代理看板
type AgentDashboard struct {
	Period   string                               `json:"period"`
	StartAt  time.Time                            `json:"start_at"`
	EndAt    time.Time                            `json:"end_at"`
	Overview repository.DashboardAgentOverviewRow `json:"overview"`
}

// GetAdminDashboard 获取平台看板,45 秒内同参数请求命中缓存
func (s *DashboardService) GetAdminDashboard(ctx context.Context, input DashboardQueryInput) (*AdminDashboard, error) {
	period, startAt, endAt, err := resolveDashboardRange(input, time.Now())
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("dashboard:admin:%s:%d:%d", period, startAt.Unix(), endAt.Unix())
	if cache.Enabled() {
		var cached AdminDashboard
		if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	overview, err := s.repo.GetOverview(startAt, endAt)
	if err != nil {
		return nil, err
	}
	trends, err := s.repo.GetOrderTrends(startAt, endAt)
	if err != nil {
		return nil, err
	}
	topQueries, err := s.repo.GetQueryTypeRanking(startAt, endAt, dashboardRankingLimit)
	if err != nil {
		return nil, err
	}
	topAgents, err := s.repo.GetAgentRanking(startAt, endAt, dashboardRankingLimit)
	if err != nil {
		return nil, err
	}

	dashboard := &AdminDashboard{
		Period:     period,
		StartAt:    startAt,
		EndAt:      endAt,
		Overview:   overview,
		Trends:     trends,
		TopQueries: topQueries,
		TopAgents:  topAgents,
	}
	if cache.Enabled() {
		if err := cache.SetJSON(ctx, cacheKey, dashboard, dashboardCacheTTL); err != nil {
			logger.Warnw("dashboard_cache_set_failed", "error", err)
		}
	}
	return dashboard, nil
}

// GetAgentDashboard 获取代理个人看板
func (s *DashboardService) GetAgentDashboard(ctx context.Context, agentID uint, input DashboardQueryInput) (*AgentDashboard, error) {
	if agentID == 0 {
		return nil, ErrAgentNotFound
	}
	period, startAt, endAt, err := resolveDashboardRange(input, time.Now())
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("dashboard:agent:%d:%s:%d:%d", agentID, period, startAt.Unix(), endAt.Unix())
	if cache.Enabled() {
		var cached AgentDashboard
		if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	overview, err := s.repo.GetAgentOverview(agentID, startAt, endAt)
	if err != nil {
		return nil, err
	}
	dashboard := &AgentDashboard{
		Period:   period,
		StartAt:  startAt,
		EndAt:    endAt,
		Overview: overview,
	}
	if cache.Enabled() {
		if err := cache.SetJSON(ctx, cacheKey, dashboard, dashboardCacheTTL); err != nil {
			logger.Warnw("dashboard_cache_set_failed", "error", err)
		}
	}
	return dashboard, nil
}

// resolveDashboardRange 解析统计区间,自定义区间最长 90 天
func resolveDashboardRange(input DashboardQueryInput, now time.Time) (string, time.Time, time.Time, error) {
	period := strings.ToLower(strings.TrimSpace(input.Period))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case "", "today":
		return "today", today, today.AddDate(0, 0, 1), nil
	case "7d":
		return "7d", today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), nil
	case "30d":
		return "30d", today.AddDate(0, 0, -29), today.AddDate(0, 0, 1), nil
	case "custom":
		startAt, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(input.StartDate), now.Location())
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("开始日期格式错误: %w", err)
		}
		endDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(input.EndDate), now.Location())
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("结束日期格式错误: %w", err)
		}
		endAt := endDate.AddDate(0, 0, 1)
		if !endAt.After(startAt) {
			return "", time.Time{}, time.Time{}, fmt.Errorf("结束日期不能早于开始日期")
		}
		if endAt.Sub(startAt) > dashboardCustomMaxDays*24*time.Hour {
			return "", time.Time{}, time.Time{}, fmt.Errorf("自定义区间最长 %d 天", dashboardCustomMaxDays)
		}
		return "custom", startAt, endAt, nil
	default:
		return "", time.Time{}, time.Time{}, fmt.Errorf("不支持的统计区间: %s", input.Period)
	}
}
