package agent

import (
	handlershared "github.com/tianyuan-next/internal/http/handlers/shared"
	"github.com/tianyuan-next/internal/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 代理端接口处理器入口
// 说明：该处理器仅用于代理后台 API。
type Handler struct {
	*provider.Container
}

// New 创建代理端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func getAgentID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "agent_id")
}
