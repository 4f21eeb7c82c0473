package models

import (
	"time"
)

// CommissionWithdrawal 佣金提现申请表
type CommissionWithdrawal struct {
	ID               uint   `gorm:"primarykey" json:"id"`                                       // 主键
	AgentID          uint   `gorm:"index:idx_withdrawals_agent_created;not null" json:"agent_id"` // 代理ID
	WithdrawalAmount Money  `gorm:"type:decimal(12,2);not null" json:"withdrawal_amount"`       // 提现金额

	// 申请时的台账快照，用于审计
	UnsettledAmountSnapshot Money `gorm:"type:decimal(12,2);not null" json:"unsettled_amount_snapshot"` // 申请时未结算金额

	Status    string `gorm:"index:idx_withdrawals_status_created;not null" json:"status"` // 状态（pending/completed/rejected）
	AdminNote string `gorm:"type:text" json:"admin_note,omitempty"`                       // 管理员备注

	CreatedAt   time.Time  `gorm:"index:idx_withdrawals_agent_created;index:idx_withdrawals_status_created" json:"created_at"` // 申请时间
	CompletedAt *time.Time `json:"completed_at,omitempty"`                                                                     // 完成时间
}

// TableName 指定表名
func (CommissionWithdrawal) TableName() string {
	return "commission_withdrawals"
}
