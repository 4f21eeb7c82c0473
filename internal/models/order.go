package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Order 查询订单表
type Order struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                          // 主键
	OrderNo           string     `gorm:"uniqueIndex;not null" json:"order_no"`                          // 订单编号
	UserID            uint       `gorm:"index:idx_orders_user_created;not null" json:"user_id"`         // 用户ID
	AgentID           *uint      `gorm:"index:idx_orders_agent_created" json:"agent_id,omitempty"`      // 代理ID（空表示主站直客订单）
	QueryType         string     `gorm:"type:varchar(50);not null" json:"query_type"`                   // 查询类型（查询产品名称）
	Amount            Money      `gorm:"type:decimal(10,2);not null" json:"amount"`                     // 订单金额
	Status            string     `gorm:"index:idx_orders_status_created;not null" json:"status"`        // 订单状态
	PaymentMethod     string     `gorm:"type:varchar(20)" json:"payment_method,omitempty"`              // 支付方式（alipay/wechat）
	PaymentTime       *time.Time `json:"payment_time,omitempty"`                                        // 支付完成时间
	ThirdPartyOrderID string     `gorm:"type:varchar(100)" json:"third_party_order_id,omitempty"`       // 第三方订单号
	ThirdPartyTradeNo string     `gorm:"type:varchar(100)" json:"third_party_trade_no,omitempty"`       // 第三方交易号
	RefundNo          string     `gorm:"type:varchar(100);index" json:"refund_no,omitempty"`            // 商户退款单号
	RefundTime        *time.Time `json:"refund_time,omitempty"`                                         // 退款时间
	QueryStartTime    *time.Time `json:"query_start_time,omitempty"`                                    // 查询开始时间
	QueryCompleteTime *time.Time `json:"query_complete_time,omitempty"`                                 // 查询完成时间
	QueryConfigID     *uint      `gorm:"index" json:"query_config_id,omitempty"`                        // 查询配置ID
	AgentCommission   Money      `gorm:"type:decimal(10,2);not null;default:0" json:"agent_commission"` // 代理佣金（下单时快照，不再重算）
	CreatedAt         time.Time  `gorm:"index:idx_orders_user_created;index:idx_orders_agent_created;index:idx_orders_status_created" json:"created_at"` // 创建时间
	UpdatedAt         time.Time  `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// GenerateOrderNo 生成订单编号（ORDER + 毫秒时间戳 + 4 位随机数）
func GenerateOrderNo() string {
	timestamp := time.Now().UnixMilli()
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		n = big.NewInt(0)
	}
	return fmt.Sprintf("ORDER%d%04d", timestamp, n.Int64()+1000)
}
