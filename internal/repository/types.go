package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	AgentID     uint
	Status      string
	OrderNo     string
	QueryType   string
	Phone       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// WithdrawalListFilter 查询佣金提现列表的过滤条件
type WithdrawalListFilter struct {
	Page        int
	PageSize    int
	AgentID     uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// QueryConfigListFilter 查询查询套餐列表的过滤条件
type QueryConfigListFilter struct {
	Page       int
	PageSize   int
	OwnerID    uint
	OwnerType  string
	Category   string
	Search     string
	OnlyActive bool
}

// APIConfigListFilter 查询接口配置列表的过滤条件
type APIConfigListFilter struct {
	Page       int
	PageSize   int
	OwnerID    uint
	OwnerType  string
	Search     string
	OnlyActive bool
}

// AgentListFilter 查询代理列表的过滤条件
type AgentListFilter struct {
	Page        int
	PageSize    int
	Keyword     string
	OnlyActive  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AuthzAuditLogListFilter 查询权限审计日志的过滤条件
type AuthzAuditLogListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	TargetAdminID   uint
	Action          string
	Role            string
	Object          string
	Method          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
