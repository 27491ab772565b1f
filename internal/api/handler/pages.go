package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// Thin page routes. The pages themselves are static shells; everything
// realtime happens over the websocket.

func (h *Handler) HomePage(c *gin.Context) {
	c.File(filepath.Join(h.StaticDir, "index.html"))
}

func (h *Handler) ChatPage(c *gin.Context) {
	c.File(filepath.Join(h.StaticDir, "chat.html"))
}

func (h *Handler) CallPage(c *gin.Context) {
	c.File(filepath.Join(h.StaticDir, "call.html"))
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
