package handler

import (
	"github.com/rs/zerolog"

	"chatcall/backend/internal/chathub"
)

// Handler holds what the HTTP routes need: the hub and the static page dir.
type Handler struct {
	Hub       *chathub.ManagerService
	StaticDir string
	Log       zerolog.Logger
}

func NewHandler(hub *chathub.ManagerService, staticDir string, log zerolog.Logger) *Handler {
	return &Handler{Hub: hub, StaticDir: staticDir, Log: log}
}
