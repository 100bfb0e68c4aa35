package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"placa-service/internal/config"
	"placa-service/internal/domain/plate"
	"placa-service/internal/export"
	"placa-service/internal/http/middleware"
	"placa-service/internal/service"
)

type PlateRecognizer interface {
	Detect(ctx context.Context, req plate.DetectRequest) (*plate.DetectionResponse, error)
	ModelLoaded() bool
	DetectorHealth(ctx context.Context) error
	RegistryConfigured() bool
	OCRAvailable() bool
}

type HistoryReader interface {
	FindRecognitions(ctx context.Context, plateQuery, from, to *string, limit, offset int) ([]service.RecognitionInfo, error)
	ExportRecognitions(ctx context.Context, plateQuery, from, to *string) ([]service.RecognitionInfo, error)
}

type Handler struct {
	plates  PlateRecognizer
	history HistoryReader
	config  *config.Config
	log     zerolog.Logger
}

// NewHandler wires the HTTP surface. history may be nil when no database is configured.
func NewHandler(
	plates PlateRecognizer,
	history HistoryReader,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		plates:  plates,
		history: history,
		config:  cfg,
		log:     log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/plates")
	{
		public.POST("/detect", h.detectPlate)
	}

	if h.history == nil {
		return
	}

	protected := r.Group("/plates")
	protected.Use(authMiddleware)
	{
		protected.GET("/history", h.listHistory)
		protected.GET("/history/export", h.exportHistory)
	}
}

func (h *Handler) detectPlate(c *gin.Context) {
	maxBytes := int64(h.config.HTTP.MaxUploadMB) << 20
	// Leave room for the other multipart fields.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+(1<<20))

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(fmt.Sprintf("file exceeds %d MB", h.config.HTTP.MaxUploadMB)))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}
	if fh.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(fmt.Sprintf("file exceeds %d MB", h.config.HTTP.MaxUploadMB)))
		return
	}

	homolog, err := parseFormBool(c.PostForm("homolog"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("homolog must be a boolean"))
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.log.Error().Err(err).Str("filename", fh.Filename).Msg("failed to open uploaded file")
		c.JSON(http.StatusBadRequest, errorResponse("could not read uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Str("filename", fh.Filename).Msg("failed to read uploaded file")
		c.JSON(http.StatusBadRequest, errorResponse("could not read uploaded file"))
		return
	}

	req := plate.DetectRequest{
		ImageData:   data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Tipo:        c.DefaultPostForm("tipo", plate.DefaultQueryType),
		Homolog:     homolog,
		ManualPlate: c.PostForm("placa_manual"),
	}

	h.log.Debug().
		Str("filename", req.Filename).
		Int("size_bytes", len(data)).
		Str("tipo", req.Tipo).
		Bool("homolog", req.Homolog).
		Bool("manual_plate", strings.TrimSpace(req.ManualPlate) != "").
		Msg("processing plate detection request")

	resp, err := h.plates.Detect(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listHistory(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanReadHistory() {
		c.JSON(http.StatusForbidden, errorResponse("forbidden"))
		return
	}

	plateQuery, from, to := historyQuery(c)

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	items, err := h.history.FindRecognitions(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(items))
}

func (h *Handler) exportHistory(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanExportHistory() {
		c.JSON(http.StatusForbidden, errorResponse("forbidden"))
		return
	}

	plateQuery, from, to := historyQuery(c)

	items, err := h.history.ExportRecognitions(c.Request.Context(), plateQuery, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := export.Filename("recognitions", time.Now())
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := export.WriteRecognitions(c.Writer, items); err != nil {
		h.log.Error().Err(err).Int("rows", len(items)).Msg("failed to write history export")
		return
	}

	h.log.Info().
		Str("user_id", principal.UserID.String()).
		Int("rows", len(items)).
		Msg("history exported")
}

func historyQuery(c *gin.Context) (plateQuery, from, to *string) {
	if p := strings.TrimSpace(c.Query("plate")); p != "" {
		plateQuery = &p
	}
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}
	return plateQuery, from, to
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, errorResponse("uploaded file is not a valid image"))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse("detection model not loaded, check PLACAOCR_MODEL_PATH"))
	case errors.Is(err, service.ErrInference):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("request abandoned")
		c.AbortWithStatus(http.StatusRequestTimeout)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

// parseFormBool accepts the usual HTML form spellings; empty means false.
func parseFormBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "f", "no", "n", "off":
		return false, nil
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
