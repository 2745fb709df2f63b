package media

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/pkg/response"
	"github.com/Priyankas007/appointment-recorder/pkg/storage"
)

// uploadedFile describes one stored upload in the response.
type uploadedFile struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	S3URL    string `json:"s3_url,omitempty"`
}

// Handler handles audio upload and playback endpoints.
type Handler struct {
	store  *Store
	s3     *storage.S3 // optional archive; nil disables
	logger *zap.Logger
}

// NewHandler creates a media handler. s3 may be nil.
func NewHandler(store *Store, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, s3: s3, logger: logger}
}

// Upload handles POST /upload-audio (multipart field "audios"). Files with
// unknown extensions are skipped; accepted files are stored under fresh
// names and, when S3 is configured, archived with a presigned download URL.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "no audio files provided")
		return
	}
	uploads := form.File["audios"]
	if len(uploads) == 0 {
		response.BadRequest(c, "no audio files provided")
		return
	}

	var saved []uploadedFile
	for _, fh := range uploads {
		if fh.Filename == "" || !AllowedFilename(fh.Filename) {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			continue
		}
		storedName, err := h.store.Save(fh.Filename, f)
		f.Close()
		if err != nil {
			h.logger.Warn("store audio failed", zap.String("filename", fh.Filename), zap.Error(err))
			continue
		}
		out := uploadedFile{
			Name:     fh.Filename,
			URL:      "/media/audio/" + storedName,
			MimeType: ContentTypeFor(storedName),
		}
		if h.s3 != nil {
			out.S3URL = h.archive(c.Request.Context(), storedName)
		}
		saved = append(saved, out)
	}

	if len(saved) == 0 {
		response.BadRequest(c, "no valid audio files were uploaded")
		return
	}
	h.logger.Info("audio uploaded", zap.Int("files", len(saved)))
	response.OK(c, gin.H{"files": saved})
}

// Serve handles GET /media/audio/:filename.
func (h *Handler) Serve(c *gin.Context) {
	p, err := h.store.Path(c.Param("filename"))
	if err != nil {
		response.NotFound(c, "file not found", "")
		return
	}
	c.Header("Content-Type", ContentTypeFor(p))
	c.File(p)
}

func (h *Handler) archive(ctx context.Context, storedName string) string {
	p, err := h.store.Path(storedName)
	if err != nil {
		return ""
	}
	f, err := os.Open(p)
	if err != nil {
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return ""
	}
	key := storage.AudioKey(storedName)
	if err := h.s3.UploadAudio(ctx, key, ContentTypeFor(storedName), f, info.Size()); err != nil {
		h.logger.Warn("audio archive upload failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	url, err := h.s3.PresignAudioDownload(ctx, key)
	if err != nil {
		h.logger.Warn("audio archive presign failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}
