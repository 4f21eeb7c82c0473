package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupDashboardServiceTest(t *testing.T) (*DashboardService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:dashboard_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.AgentUser{}, &models.RegularUser{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	models.DB = db
	return NewDashboardService(repository.NewDashboardRepository(db)), db
}

func createDashboardTestOrder(t *testing.T, db *gorm.DB, agentID *uint, status, amount, commission, queryType string) {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		OrderNo:         models.GenerateOrderNo(),
		UserID:          1,
		AgentID:         agentID,
		QueryType:       queryType,
		Amount:          mustMoney(t, amount),
		AgentCommission: mustMoney(t, commission),
		Status:          status,
	}
	if status != constants.OrderStatusPending {
		order.PaymentTime = &now
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("创建订单失败: %v", err)
	}
}

func TestGetAdminDashboardAggregates(t *testing.T) {
	svc, db := setupDashboardServiceTest(t)

	agent := &models.AgentUser{Username: "agent01", PasswordHash: "hash", DomainSuffix: "agent01"}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("创建代理失败: %v", err)
	}
	agentID := agent.ID

	createDashboardTestOrder(t, db, nil, constants.OrderStatusPending, "29.90", "0.00", "个人风险查询")
	createDashboardTestOrder(t, db, &agentID, constants.OrderStatusCompleted, "39.90", "10.00", "个人风险查询")
	createDashboardTestOrder(t, db, &agentID, constants.OrderStatusCompleted, "59.90", "15.00", "企业综合查询")
	createDashboardTestOrder(t, db, nil, constants.OrderStatusFailed, "19.90", "0.00", "婚姻状况查询")

	dashboard, err := svc.GetAdminDashboard(context.Background(), DashboardQueryInput{Period: "today"})
	if err != nil {
		t.Fatalf("获取看板失败: %v", err)
	}

	if dashboard.Overview.OrdersTotal != 4 {
		t.Fatalf("订单总数应为 4, 实际 %d", dashboard.Overview.OrdersTotal)
	}
	if dashboard.Overview.PaidOrders != 2 || dashboard.Overview.CompletedOrders != 2 {
		t.Fatalf("付费/完成统计不符: %+v", dashboard.Overview)
	}
	if dashboard.Overview.PendingOrders != 1 || dashboard.Overview.FailedOrders != 1 {
		t.Fatalf("待支付/失败统计不符: %+v", dashboard.Overview)
	}
	if diff := dashboard.Overview.PaidAmount - 99.80; diff < -0.001 || diff > 0.001 {
		t.Fatalf("付费金额应为 99.80, 实际 %.2f", dashboard.Overview.PaidAmount)
	}
	if dashboard.Overview.CommissionAmount != 25.00 {
		t.Fatalf("佣金总额应为 25.00, 实际 %.2f", dashboard.Overview.CommissionAmount)
	}

	if len(dashboard.Trends) != 1 || dashboard.Trends[0].OrdersTotal != 4 || dashboard.Trends[0].OrdersPaid != 2 {
		t.Fatalf("趋势统计不符: %+v", dashboard.Trends)
	}

	if len(dashboard.TopQueries) == 0 || dashboard.TopQueries[0].QueryType == "" {
		t.Fatalf("查询类型排行为空")
	}
	if len(dashboard.TopAgents) != 1 || dashboard.TopAgents[0].Username != "agent01" || dashboard.TopAgents[0].PaidOrders != 2 {
		t.Fatalf("代理排行不符: %+v", dashboard.TopAgents)
	}
}

func TestGetAgentDashboardScopedToAgent(t *testing.T) {
	svc, db := setupDashboardServiceTest(t)

	agent := &models.AgentUser{Username: "agent02", PasswordHash: "hash", DomainSuffix: "agent02"}
	other := &models.AgentUser{Username: "agent03", PasswordHash: "hash", DomainSuffix: "agent03"}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("创建代理失败: %v", err)
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("创建代理失败: %v", err)
	}
	agentID, otherID := agent.ID, other.ID

	createDashboardTestOrder(t, db, &agentID, constants.OrderStatusCompleted, "39.90", "10.00", "个人风险查询")
	createDashboardTestOrder(t, db, &otherID, constants.OrderStatusCompleted, "59.90", "20.00", "个人风险查询")

	dashboard, err := svc.GetAgentDashboard(context.Background(), agentID, DashboardQueryInput{Period: "7d"})
	if err != nil {
		t.Fatalf("获取代理看板失败: %v", err)
	}
	if dashboard.Overview.PaidOrders != 1 || dashboard.Overview.CommissionAmount != 10.00 {
		t.Fatalf("代理看板应只含自己的数据: %+v", dashboard.Overview)
	}

	if _, err := svc.GetAgentDashboard(context.Background(), 0, DashboardQueryInput{}); err == nil {
		t.Fatalf("代理ID为 0 应报错")
	}
}

func TestResolveDashboardRange(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.Local)

	period, startAt, endAt, err := resolveDashboardRange(DashboardQueryInput{}, now)
	if err != nil || period != "today" {
		t.Fatalf("默认区间应为 today: %s err=%v", period, err)
	}
	if startAt.Day() != 28 || !endAt.Equal(startAt.AddDate(0, 0, 1)) {
		t.Fatalf("today 区间不符: %v ~ %v", startAt, endAt)
	}

	_, startAt, endAt, err = resolveDashboardRange(DashboardQueryInput{Period: "30d"}, now)
	if err != nil || endAt.Sub(startAt) != 30*24*time.Hour {
		t.Fatalf("30d 区间不符: %v err=%v", endAt.Sub(startAt), err)
	}

	_, _, _, err = resolveDashboardRange(DashboardQueryInput{Period: "custom", StartDate: "2026-01-01", EndDate: "2026-06-30"}, now)
	if err == nil {
		t.Fatalf("超过 90 天的自定义区间应拒绝")
	}
	_, _, _, err = resolveDashboardRange(DashboardQueryInput{Period: "custom", StartDate: "2026-08-01", EndDate: "2026-08-20"}, now)
	if err != nil {
		t.Fatalf("合法自定义区间应通过: %v", err)
	}
	_, _, _, err = resolveDashboardRange(DashboardQueryInput{Period: "yearly"}, now)
	if err == nil {
		t.Fatalf("未知区间应拒绝")
	}
}
