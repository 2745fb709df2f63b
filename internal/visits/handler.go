package visits

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Priyankas007/appointment-recorder/pkg/response"
)

// Handler handles archived visit endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a visits handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /visits?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list visits failed", zap.Error(err))
		response.Internal(c, "failed to list visits")
		return
	}
	if list == nil {
		list = []Visit{}
	}
	response.OK(c, gin.H{"visits": list})
}

// GetByID handles GET /visits/:id, including the full transcript.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid visit id")
		return
	}
	v, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "visit not found", "")
			return
		}
		h.logger.Error("get visit failed", zap.String("visit_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load visit")
		return
	}
	response.OK(c, v)
}
