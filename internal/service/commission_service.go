package service

import (
	"fmt"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 代理佣金台账服务。
// 台账不变量:任何操作后 unsettled + settled == total 且各字段非负。
type CommissionService struct {
	agentRepo      repository.AgentUserRepository
	withdrawalRepo repository.CommissionWithdrawalRepository
}

// NewCommissionService 创建佣金服务
func NewCommissionService(agentRepo repository.AgentUserRepository, withdrawalRepo repository.CommissionWithdrawalRepository) *CommissionService {
	return &CommissionService{
		agentRepo:      agentRepo,
		withdrawalRepo: withdrawalRepo,
	}
}

// Accrue 订单支付成功时累计佣金,须在事务内调用
func (s *CommissionService) Accrue(tx *gorm.DB, agentID uint, amount models.Money) error {
	if agentID == 0 || !amount.GreaterThan(decimal.Zero) {
		return nil
	}
	agentRepo := s.agentRepo.WithTx(tx)
	agent, err := agentRepo.GetByIDForUpdate(agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return ErrAgentNotFound
	}
	return agentRepo.Updates(agent.ID, map[string]interface{}{
		"total_commission":     models.NewMoneyFromDecimal(agent.TotalCommission.Add(amount.Decimal)),
		"unsettled_commission": models.NewMoneyFromDecimal(agent.UnsettledCommission.Add(amount.Decimal)),
	})
}

// AccrueProfit 订单支付成功时累计代理名下订单收入,须在事务内调用
func (s *CommissionService) AccrueProfit(tx *gorm.DB, agentID uint, amount models.Money) error {
	if agentID == 0 || !amount.GreaterThan(decimal.Zero) {
		return nil
	}
	agentRepo := s.agentRepo.WithTx(tx)
	agent, err := agentRepo.GetByIDForUpdate(agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return ErrAgentNotFound
	}
	return agentRepo.Updates(agent.ID, map[string]interface{}{
		"total_profit": models.NewMoneyFromDecimal(agent.TotalProfit.Add(amount.Decimal)),
	})
}

// Reverse 退款确认后冲回佣金,须在事务内调用。
// 未结算余额不足时先扣完未结算,差额从已结算扣除并记录缺口,保持台账不变量。
func (s *CommissionService) Reverse(tx *gorm.DB, agentID uint, amount models.Money) error {
	if agentID == 0 || !amount.GreaterThan(decimal.Zero) {
		return nil
	}
	agentRepo := s.agentRepo.WithTx(tx)
	agent, err := agentRepo.GetByIDForUpdate(agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return ErrAgentNotFound
	}

	fromUnsettled := amount.Decimal
	if agent.UnsettledCommission.LessThan(fromUnsettled) {
		fromUnsettled = agent.UnsettledCommission.Decimal
	}
	fromSettled := amount.Sub(fromUnsettled)
	if fromSettled.GreaterThan(decimal.Zero) {
		logger.Warnw("commission_reverse_shortfall",
			"agent_id", agentID,
			"reverse_amount", amount.String(),
			"unsettled", agent.UnsettledCommission.String(),
			"settled_deduction", fromSettled.StringFixed(2))
	}

	return agentRepo.Updates(agent.ID, map[string]interface{}{
		"total_commission":     models.NewMoneyFromDecimal(agent.TotalCommission.Sub(amount.Decimal)),
		"unsettled_commission": models.NewMoneyFromDecimal(agent.UnsettledCommission.Sub(fromUnsettled)),
		"settled_commission":   models.NewMoneyFromDecimal(agent.SettledCommission.Sub(fromSettled)),
	})
}

// ApplyWithdrawalInput 申请提现输入
type ApplyWithdrawalInput struct {
	AgentID uint
	Amount  models.Money
}

// WithdrawalInFlightError 已存在待审核提现时的拒绝,携带在途申请的 ID 与金额
type WithdrawalInFlightError struct {
	PendingID     uint
	PendingAmount models.Money
}

func (e *WithdrawalInFlightError) Error() string {
	return fmt.Sprintf("withdrawal already in flight: id=%d amount=%s", e.PendingID, e.PendingAmount.String())
}

func (e *WithdrawalInFlightError) Unwrap() error {
	return ErrWithdrawalInFlight
}

// ApplyWithdrawal 代理申请佣金提现。
// 同一代理同时只允许一笔待审核申请,申请时快照未结算余额供审计。
func (s *CommissionService) ApplyWithdrawal(input ApplyWithdrawalInput) (*models.CommissionWithdrawal, error) {
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, ErrWithdrawalAmountInvalid
	}

	var withdrawal *models.CommissionWithdrawal
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		agentRepo := s.agentRepo.WithTx(tx)
		withdrawalRepo := s.withdrawalRepo.WithTx(tx)

		agent, err := agentRepo.GetByIDForUpdate(input.AgentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
		if agent.UnsettledCommission.LessThan(input.Amount.Decimal) {
			return ErrInsufficientCommission
		}

		pending, err := withdrawalRepo.GetPendingByAgent(agent.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			return &WithdrawalInFlightError{
				PendingID:     pending.ID,
				PendingAmount: pending.WithdrawalAmount,
			}
		}

		withdrawal = &models.CommissionWithdrawal{
			AgentID:                 agent.ID,
			WithdrawalAmount:        input.Amount,
			UnsettledAmountSnapshot: agent.UnsettledCommission,
			Status:                  constants.WithdrawalStatusPending,
		}
		return withdrawalRepo.Create(withdrawal)
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("withdrawal_applied",
		"withdrawal_id", withdrawal.ID,
		"agent_id", withdrawal.AgentID,
		"amount", withdrawal.WithdrawalAmount.String())
	return withdrawal, nil
}

// ReviewWithdrawalInput 审核提现输入
type ReviewWithdrawalInput struct {
	WithdrawalID uint
	Approve      bool
	AdminNote    string
}

// ReviewWithdrawal 管理员审核提现。
// 通过时原子地将金额从未结算划转到已结算;驳回仅更新状态与备注,台账不动。
func (s *CommissionService) ReviewWithdrawal(input ReviewWithdrawalInput) (*models.CommissionWithdrawal, error) {
	var reviewed *models.CommissionWithdrawal
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		withdrawalRepo := s.withdrawalRepo.WithTx(tx)
		agentRepo := s.agentRepo.WithTx(tx)

		withdrawal, err := withdrawalRepo.GetByIDForUpdate(input.WithdrawalID)
		if err != nil {
			return err
		}
		if withdrawal == nil {
			return ErrWithdrawalNotFound
		}
		if withdrawal.Status != constants.WithdrawalStatusPending {
			return ErrWithdrawalStateInvalid
		}

		now := time.Now()
		if !input.Approve {
			if err := withdrawalRepo.Updates(withdrawal.ID, map[string]interface{}{
				"status":       constants.WithdrawalStatusRejected,
				"admin_note":   input.AdminNote,
				"completed_at": now,
			}); err != nil {
				return err
			}
			withdrawal.Status = constants.WithdrawalStatusRejected
			withdrawal.AdminNote = input.AdminNote
			withdrawal.CompletedAt = &now
			reviewed = withdrawal
			return nil
		}

		agent, err := agentRepo.GetByIDForUpdate(withdrawal.AgentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
		if agent.UnsettledCommission.LessThan(withdrawal.WithdrawalAmount.Decimal) {
			return ErrInsufficientCommission
		}

		if err := agentRepo.Updates(agent.ID, map[string]interface{}{
			"unsettled_commission": models.NewMoneyFromDecimal(agent.UnsettledCommission.Sub(withdrawal.WithdrawalAmount.Decimal)),
			"settled_commission":   models.NewMoneyFromDecimal(agent.SettledCommission.Add(withdrawal.WithdrawalAmount.Decimal)),
		}); err != nil {
			return err
		}
		if err := withdrawalRepo.Updates(withdrawal.ID, map[string]interface{}{
			"status":       constants.WithdrawalStatusCompleted,
			"admin_note":   input.AdminNote,
			"completed_at": now,
		}); err != nil {
			return err
		}
		withdrawal.Status = constants.WithdrawalStatusCompleted
		withdrawal.AdminNote = input.AdminNote
		withdrawal.CompletedAt = &now
		reviewed = withdrawal
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("withdrawal_reviewed",
		"withdrawal_id", reviewed.ID,
		"agent_id", reviewed.AgentID,
		"status", reviewed.Status,
		"amount", reviewed.WithdrawalAmount.String())
	return reviewed, nil
}

// ListWithdrawals 提现申请列表
func (s *CommissionService) ListWithdrawals(filter repository.WithdrawalListFilter) ([]models.CommissionWithdrawal, int64, error) {
	return s.withdrawalRepo.List(filter)
}
