package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/edgard/calendarbot/internal/oracle"
	"github.com/edgard/calendarbot/internal/pipeline"
)

// handleUpload extracts events from the multipart field "file".
func (s *Server) handleUpload(c *gin.Context) {
	ctx := c.Request.Context()
	limit := s.deps.Config.HTTP.MaxUploadMB << 20
	if c.Request.ContentLength > limit {
		s.fail(c, http.StatusRequestEntityTooLarge, "File too large", nil)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, "File too large", nil)
			return
		}
		s.fail(c, http.StatusBadRequest, "File field is missing", nil)
		return
	}

	tmp, err := os.CreateTemp("", "calendarbot-upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if err := c.SaveUploadedFile(fh, path); err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}

	name := filepath.Base(fh.Filename)
	n, err := s.deps.Uploads.ProcessUpload(ctx, name, path)
	var oerr *oracle.Error
	switch {
	case errors.Is(err, pipeline.ErrNoText):
		s.fail(c, http.StatusBadRequest, "Could not extract text from file or unsupported file type.", nil)
		return
	case errors.As(err, &oerr):
		s.fail(c, http.StatusBadGateway, "Event extraction failed", err)
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, "Failed to process upload", err)
		return
	}

	s.log.InfoContext(ctx, "Processed upload", "filename", name, "events_found", n)
	c.JSON(http.StatusOK, gin.H{"status": "success", "events_found": n})
}
