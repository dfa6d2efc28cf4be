package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"englearn/internal/media/sniffer"
	"englearn/internal/service"
)

// UploadAvatar takes a multipart "file" field.
func (h HandlerSet) UploadAvatar(c *gin.Context) {
	if h.avatars == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":  "unavailable",
			"detail": "Avatar storage is not configured",
		})
		return
	}

	// multipart framing on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Storage.MaxAvatarSize+64<<10)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation_error",
			"detail": "file is required",
		})
		return
	}
	defer file.Close()

	user, err := h.avatars.Upload(c.Request.Context(), principal(c).User, service.AvatarUpload{
		File:         file,
		Size:         header.Size,
		DeclaredType: sniffer.DeclaredMIME(http.Header(header.Header)),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

// AuthorizeAvatar answers the proxy's auth subrequest for an avatar object:
// 204 when the original URI carries a valid signature, 403 otherwise.
func (h HandlerSet) AuthorizeAvatar(c *gin.Context) {
	if h.avatars == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":  "unavailable",
			"detail": "Avatar storage is not configured",
		})
		return
	}

	uri := c.GetHeader("X-Original-URI")
	if uri == "" {
		uri = c.Query("uri")
	}
	if !h.avatars.AuthorizeURL(uri) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":  "forbidden",
			"detail": "Invalid avatar signature",
		})
		return
	}
	c.Status(http.StatusNoContent)
}
