package public

import (
	"fmt"
	"strings"

	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetOrderResult 查看订单的查询结果,手机号作为归属凭证
func (h *Handler) GetOrderResult(c *gin.Context) {
	orderNo := c.Param("order_no")
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		respondError(c, response.CodeBadRequest, "缺少手机号", nil)
		return
	}

	user, err := h.RegularUserRepo.GetByPhone(phone)
	if err != nil {
		respondError(c, response.CodeInternal, "查询结果获取失败", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return
	}

	view, err := h.ResultService.GetResultByOrderNo(orderNo, user.ID)
	if err != nil {
		respondResultFetchError(c, err)
		return
	}
	response.Success(c, view)
}

// DownloadAuthorizationLetter 按下载令牌获取授权书
func (h *Handler) DownloadAuthorizationLetter(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		respondError(c, response.CodeBadRequest, "缺少下载令牌", nil)
		return
	}

	letter, err := h.ResultService.GetLetterByToken(token)
	if err != nil {
		respondWithMappedError(c, err, []mappedHandlerError{
			{target: service.ErrLetterNotFound, code: response.CodeNotFound, msg: "授权书不存在或已失效"},
		}, response.CodeInternal, "授权书获取失败")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="authorization_%d.txt"`, letter.ID))
	c.Data(200, "text/plain; charset=utf-8", []byte(letter.AuthorizationContent))
}
