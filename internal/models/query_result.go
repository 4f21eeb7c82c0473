package models

import (
	"time"
)

// QueryResult 查询结果表（历史记录与结果存储）
type QueryResult struct {
	ID                  uint       `gorm:"primarykey" json:"id"`                                           // 主键
	OrderID             uint       `gorm:"index;not null" json:"order_id"`                                 // 关联订单ID（应用层保证一单一结果）
	UserID              uint       `gorm:"index:idx_query_results_user_created" json:"user_id"`            // 用户ID
	AgentID             *uint      `gorm:"index:idx_query_results_agent_created" json:"agent_id,omitempty"` // 代理ID
	EncryptedResultData string     `gorm:"type:text" json:"-"`                                             // 查询结果（加密存储，过期清空）
	ResultHash          string     `gorm:"type:varchar(64)" json:"result_hash,omitempty"`                  // 结果完整性校验
	Status              string     `gorm:"index:idx_query_results_status_created;not null" json:"status"`  // 查询状态
	ErrorMessage        string     `gorm:"type:text" json:"error_message,omitempty"`                       // 错误信息
	CostAmount          Money      `gorm:"type:decimal(10,2);not null;default:0" json:"cost_amount"`       // 查询费用
	CreatedAt           time.Time  `gorm:"index:idx_query_results_user_created;index:idx_query_results_agent_created;index:idx_query_results_status_created" json:"created_at"` // 创建时间
	CompletedTime       *time.Time `json:"completed_time,omitempty"`                                       // 完成时间
	ExpiresAt           time.Time  `gorm:"index:idx_query_results_expired_at" json:"expires_at"`           // 过期时间（创建后 30 天）
	IsExpired           bool       `gorm:"index:idx_query_results_expired_at;not null;default:false" json:"is_expired"` // 是否已过期
}

// TableName 指定表名
func (QueryResult) TableName() string {
	return "query_results"
}

// ResultRetentionDays 查询结果保留天数
const ResultRetentionDays = 30

// IsResultExpired 检查结果是否已过期
func (q *QueryResult) IsResultExpired(now time.Time) bool {
	return q.IsExpired || now.After(q.ExpiresAt)
}
