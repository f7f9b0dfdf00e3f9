package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/service/overrides"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/response"
)

const overrideVersion = "1.6.0"

// OverrideHandler exposes human folder-move detection.
type OverrideHandler struct {
	detector *overrides.Service
}

// NewOverrideHandler creates a new OverrideHandler.
func NewOverrideHandler(detector *overrides.Service) *OverrideHandler {
	return &OverrideHandler{detector: detector}
}

// RegisterRoutes registers override routes.
func (h *OverrideHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/overrides", h.Handle)
}

// Handle routes one override action.
func (h *OverrideHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "detect_overrides":
		summary, err := h.detector.DetectOverrides(c.Context())
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternalError, "override detection failed", fiber.StatusInternalServerError)
		}
		return response.OKVersioned(c, overrideVersion, summary)
	default:
		return apperr.UnknownAction(req.Action)
	}
}
