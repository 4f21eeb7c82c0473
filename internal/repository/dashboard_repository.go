package repository

import (
	"fmt"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"

	"gorm.io/gorm"
)

// DashboardRepository 运营看板聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type DashboardRepository interface {
	GetOverview(startAt, endAt time.Time) (DashboardOverviewRow, error)
	GetOrderTrends(startAt, endAt time.Time) ([]DashboardOrderTrendRow, error)
	GetQueryTypeRanking(startAt, endAt time.Time, limit int) ([]DashboardQueryTypeRow, error)
	GetAgentRanking(startAt, endAt time.Time, limit int) ([]DashboardAgentRankingRow, error)
	GetAgentOverview(agentID uint, startAt, endAt time.Time) (DashboardAgentOverviewRow, error)
}

// DashboardOverviewRow 平台总览原始统计结果
type DashboardOverviewRow struct {
	OrdersTotal      int64
	PaidOrders       int64
	CompletedOrders  int64
	PendingOrders    int64
	FailedOrders     int64
	RefundedOrders   int64
	PaidAmount       float64
	RefundedAmount   float64
	CommissionAmount float64
	NewUsers         int64
}

// DashboardOrderTrendRow 订单趋势统计
type DashboardOrderTrendRow struct {
	Day         string
	OrdersTotal int64
	OrdersPaid  int64
	PaidAmount  float64
}

// DashboardQueryTypeRow 查询类型排行原始行
type DashboardQueryTypeRow struct {
	QueryType  string
	PaidOrders int64
	PaidAmount float64
}

// DashboardAgentRankingRow 代理排行原始行
type DashboardAgentRankingRow struct {
	AgentID          uint
	Username         string
	PaidOrders       int64
	PaidAmount       float64
	CommissionAmount float64
}

// DashboardAgentOverviewRow 代理个人看板原始统计
type DashboardAgentOverviewRow struct {
	OrdersTotal      int64
	PaidOrders       int64
	CompletedOrders  int64
	PaidAmount       float64
	CommissionAmount float64
	NewUsers         int64
}

// GormDashboardRepository GORM 看板聚合实现
type GormDashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建看板仓库
func NewDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: db}
}

// paidOrderStatuses 已付费订单状态集合,含履约中与已完成
func paidOrderStatuses() []string {
	return []string{
		constants.OrderStatusPaid,
		constants.OrderStatusQuerying,
		constants.OrderStatusCompleted,
		constants.OrderStatusRefunded,
	}
}

func (r *GormDashboardRepository) dayExpr() string {
	return dayBucketExpr(r.db, "created_at")
}

// GetOverview 获取平台总览统计
func (r *GormDashboardRepository) GetOverview(startAt, endAt time.Time) (DashboardOverviewRow, error) {
	result := DashboardOverviewRow{}

	orderBase := func() *gorm.DB {
		return r.db.Model(&models.Order{}).
			Where("created_at >= ? AND created_at < ?", startAt, endAt)
	}

	if err := orderBase().Count(&result.OrdersTotal).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status IN ?", paidOrderStatuses()).Count(&result.PaidOrders).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status = ?", constants.OrderStatusCompleted).Count(&result.CompletedOrders).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status = ?", constants.OrderStatusPending).Count(&result.PendingOrders).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status = ?", constants.OrderStatusFailed).Count(&result.FailedOrders).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status = ?", constants.OrderStatusRefunded).Count(&result.RefundedOrders).Error; err != nil {
		return result, err
	}

	if err := r.db.Model(&models.Order{}).
		Where("payment_time IS NOT NULL AND payment_time >= ? AND payment_time < ? AND status IN ?", startAt, endAt, paidOrderStatuses()).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&result.PaidAmount).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Order{}).
		Where("refund_time IS NOT NULL AND refund_time >= ? AND refund_time < ? AND status = ?", startAt, endAt, constants.OrderStatusRefunded).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&result.RefundedAmount).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Order{}).
		Where("agent_id IS NOT NULL AND payment_time IS NOT NULL AND payment_time >= ? AND payment_time < ? AND status IN ?", startAt, endAt, paidOrderStatuses()).
		Select("COALESCE(SUM(agent_commission), 0)").
		Scan(&result.CommissionAmount).Error; err != nil {
		return result, err
	}

	if err := r.db.Model(&models.RegularUser{}).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Count(&result.NewUsers).Error; err != nil {
		return result, err
	}

	return result, nil
}

// GetOrderTrends 按天统计下单量、付费量与付费金额
func (r *GormDashboardRepository) GetOrderTrends(startAt, endAt time.Time) ([]DashboardOrderTrendRow, error) {
	type totalRow struct {
		Day   string
		Total int64
	}
	type paidRow struct {
		Day    string
		Paid   int64
		Amount float64
	}

	var totals []totalRow
	if err := r.db.Model(&models.Order{}).
		Select(fmt.Sprintf("%s as day, COUNT(*) as total", r.dayExpr())).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Group(r.dayExpr()).
		Order("day asc").
		Scan(&totals).Error; err != nil {
		return nil, err
	}

	var paids []paidRow
	if err := r.db.Model(&models.Order{}).
		Select(fmt.Sprintf("%s as day, COUNT(*) as paid, COALESCE(SUM(amount), 0) as amount", r.dayExpr())).
		Where("created_at >= ? AND created_at < ? AND status IN ?", startAt, endAt, paidOrderStatuses()).
		Group(r.dayExpr()).
		Order("day asc").
		Scan(&paids).Error; err != nil {
		return nil, err
	}

	paidMap := make(map[string]paidRow, len(paids))
	for _, item := range paids {
		paidMap[item.Day] = item
	}

	result := make([]DashboardOrderTrendRow, 0, len(totals))
	for _, item := range totals {
		result = append(result, DashboardOrderTrendRow{
			Day:         item.Day,
			OrdersTotal: item.Total,
			OrdersPaid:  paidMap[item.Day].Paid,
			PaidAmount:  paidMap[item.Day].Amount,
		})
	}
	return result, nil
}

// GetQueryTypeRanking 获取付费订单的查询类型排行
func (r *GormDashboardRepository) GetQueryTypeRanking(startAt, endAt time.Time, limit int) ([]DashboardQueryTypeRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []DashboardQueryTypeRow
	if err := r.db.Model(&models.Order{}).
		Select("query_type, COUNT(*) as paid_orders, COALESCE(SUM(amount), 0) as paid_amount").
		Where("created_at >= ? AND created_at < ? AND status IN ?", startAt, endAt, paidOrderStatuses()).
		Group("query_type").
		Order("paid_orders desc").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetAgentRanking 获取代理付费业绩排行
func (r *GormDashboardRepository) GetAgentRanking(startAt, endAt time.Time, limit int) ([]DashboardAgentRankingRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []DashboardAgentRankingRow
	if err := r.db.Model(&models.Order{}).
		Select("orders.agent_id as agent_id, agent_users.username as username, COUNT(*) as paid_orders, COALESCE(SUM(orders.amount), 0) as paid_amount, COALESCE(SUM(orders.agent_commission), 0) as commission_amount").
		Joins("JOIN agent_users ON agent_users.id = orders.agent_id").
		Where("orders.agent_id IS NOT NULL AND orders.created_at >= ? AND orders.created_at < ? AND orders.status IN ?", startAt, endAt, paidOrderStatuses()).
		Group("orders.agent_id, agent_users.username").
		Order("paid_amount desc").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetAgentOverview 获取单个代理的经营统计
func (r *GormDashboardRepository) GetAgentOverview(agentID uint, startAt, endAt time.Time) (DashboardAgentOverviewRow, error) {
	result := DashboardAgentOverviewRow{}

	orderBase := func() *gorm.DB {
		return r.db.Model(&models.Order{}).
			Where("agent_id = ? AND created_at >= ? AND created_at < ?", agentID, startAt, endAt)
	}

	if err := orderBase().Count(&result.OrdersTotal).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status IN ?", paidOrderStatuses()).Count(&result.PaidOrders).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status = ?", constants.OrderStatusCompleted).Count(&result.CompletedOrders).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status IN ?", paidOrderStatuses()).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&result.PaidAmount).Error; err != nil {
		return result, err
	}
	if err := orderBase().Where("status IN ?", paidOrderStatuses()).
		Select("COALESCE(SUM(agent_commission), 0)").
		Scan(&result.CommissionAmount).Error; err != nil {
		return result, err
	}

	if err := r.db.Model(&models.RegularUser{}).
		Where("agent_id = ? AND created_at >= ? AND created_at < ?", agentID, startAt, endAt).
		Count(&result.NewUsers).Error; err != nil {
		return result, err
	}

	return result, nil
}
