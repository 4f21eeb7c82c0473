package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/payment"
	"github.com/tianyuan-next/internal/queue"

	"gorm.io/gorm"
)

// 退款为异步流程时首次对账的延迟
const refundReconcileDelay = 30 * time.Second

// RefundOrderResult 退款提交结果
type RefundOrderResult struct {
	OrderNo  string `json:"order_no"`
	RefundNo string `json:"refund_no"`
	Status   string `json:"status"`
}

// RefundOrder 管理员对已支付订单发起全额退款。
// 渠道即时确认时直接落为已退款并冲回佣金;异步渠道记录退款单号并交给对账任务收尾。
func (s *PaymentService) RefundOrder(ctx context.Context, orderNo, reason string) (*RefundOrderResult, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPaid && order.Status != constants.OrderStatusCompleted {
		return nil, ErrRefundNotAllowed
	}
	if order.RefundNo != "" {
		// 已有在途退款,返回当前进度而不是重复发起
		return &RefundOrderResult{
			OrderNo:  order.OrderNo,
			RefundNo: order.RefundNo,
			Status:   constants.RefundStatusProcessing,
		}, nil
	}
	if order.PaymentMethod == "" {
		return nil, ErrPaymentNotPaid
	}

	ownerID, ownerType := orderOwner(order)
	gw, err := s.resolveGateway(order.PaymentMethod, ownerID, ownerType)
	if err != nil {
		return nil, err
	}

	refundNo := fmt.Sprintf("refund_%s_%d", order.OrderNo, time.Now().Unix())
	result, err := gw.RefundOrder(ctx, payment.RefundOrderInput{
		OrderNo:  order.OrderNo,
		RefundNo: refundNo,
		Amount:   order.Amount.String(),
		Reason:   reason,
	})
	if err != nil {
		logger.Errorw("refund_submit_failed",
			"order_no", order.OrderNo,
			"method", order.PaymentMethod,
			"error", err)
		return nil, err
	}
	if result.RefundNo != "" {
		refundNo = result.RefundNo
	}

	switch result.Status {
	case constants.RefundStatusSuccess:
		if err := s.confirmRefund(order.ID, refundNo); err != nil {
			return nil, err
		}
		return &RefundOrderResult{OrderNo: order.OrderNo, RefundNo: refundNo, Status: constants.RefundStatusSuccess}, nil
	case constants.RefundStatusFailed:
		logger.Warnw("refund_rejected_by_gateway",
			"order_no", order.OrderNo,
			"refund_no", refundNo)
		return &RefundOrderResult{OrderNo: order.OrderNo, RefundNo: refundNo, Status: constants.RefundStatusFailed}, nil
	default:
		if err := s.orderRepo.Updates(order.ID, map[string]interface{}{"refund_no": refundNo}); err != nil {
			return nil, err
		}
		if err := s.queueClient.EnqueueRefundReconcile(queue.RefundReconcilePayload{
			OrderNo:  order.OrderNo,
			RefundNo: refundNo,
		}, refundReconcileDelay); err != nil {
			logger.Errorw("refund_reconcile_enqueue_failed",
				"order_no", order.OrderNo,
				"refund_no", refundNo,
				"error", err)
		}
		logger.Infow("refund_submitted",
			"order_no", order.OrderNo,
			"refund_no", refundNo)
		return &RefundOrderResult{OrderNo: order.OrderNo, RefundNo: refundNo, Status: constants.RefundStatusProcessing}, nil
	}
}

// ReconcileRefund 查询渠道侧退款进度并收尾,由后台任务调用。
// 返回 ErrRefundStillProcessing 时任务会按退避策略重试。
func (s *PaymentService) ReconcileRefund(ctx context.Context, orderNo, refundNo string) error {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status == constants.OrderStatusRefunded {
		return nil
	}
	if order.PaymentMethod == "" {
		return ErrPaymentNotPaid
	}

	ownerID, ownerType := orderOwner(order)
	gw, err := s.resolveGateway(order.PaymentMethod, ownerID, ownerType)
	if err != nil {
		return err
	}
	status, err := gw.QueryRefundStatus(ctx, orderNo, refundNo)
	if err != nil {
		return err
	}

	switch status {
	case constants.RefundStatusSuccess:
		return s.confirmRefund(order.ID, refundNo)
	case constants.RefundStatusFailed:
		// 渠道明确失败,清掉退款单号让管理员可以重新发起
		logger.Warnw("refund_failed",
			"order_no", orderNo,
			"refund_no", refundNo)
		return s.orderRepo.Updates(order.ID, map[string]interface{}{"refund_no": ""})
	default:
		return ErrRefundStillProcessing
	}
}

// confirmRefund 将订单落为已退款并冲回代理佣金,重复调用安全
func (s *PaymentService) confirmRefund(orderID uint, refundNo string) error {
	var orderNo string
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == constants.OrderStatusRefunded {
			return nil
		}

		now := time.Now()
		if err := orderRepo.Updates(order.ID, map[string]interface{}{
			"status":      constants.OrderStatusRefunded,
			"refund_no":   refundNo,
			"refund_time": now,
		}); err != nil {
			return err
		}

		if order.AgentID != nil {
			if err := s.commissionSvc.Reverse(tx, *order.AgentID, order.AgentCommission); err != nil {
				return err
			}
		}
		orderNo = order.OrderNo
		return nil
	})
	if err != nil {
		return err
	}
	if orderNo != "" {
		logger.Infow("order_refunded",
			"order_no", orderNo,
			"refund_no", refundNo)
	}
	return nil
}
