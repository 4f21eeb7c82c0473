package agent

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

func TestRespondApplyWithdrawalErrorCarriesPendingRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	amount, err := models.NewMoneyFromString("15.00")
	if err != nil {
		t.Fatalf("解析金额失败: %v", err)
	}
	respondApplyWithdrawalError(c, &service.WithdrawalInFlightError{
		PendingID:     7,
		PendingAmount: amount,
	})

	var body struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
		Data       struct {
			PendingWithdrawalID uint   `json:"pending_withdrawal_id"`
			PendingAmount       string `json:"pending_amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body.StatusCode != response.CodeBadRequest {
		t.Fatalf("期望业务码 %d, 实际 %d", response.CodeBadRequest, body.StatusCode)
	}
	if body.Data.PendingWithdrawalID != 7 {
		t.Fatalf("期望在途申请 ID 7, 实际 %d", body.Data.PendingWithdrawalID)
	}
	if body.Data.PendingAmount != "15.00" {
		t.Fatalf("期望在途金额 15.00, 实际 %s", body.Data.PendingAmount)
	}
}
