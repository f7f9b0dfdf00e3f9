package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/service/retainer"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/response"
)

const retainerVersion = "1.1.0"

// RetainerHandler exposes monthly retainer activation.
type RetainerHandler struct {
	activator *retainer.Service
}

// NewRetainerHandler creates a new RetainerHandler.
func NewRetainerHandler(activator *retainer.Service) *RetainerHandler {
	return &RetainerHandler{activator: activator}
}

// RegisterRoutes registers retainer routes.
func (h *RetainerHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/retainers", h.Handle)
}

// Handle routes one retainer action.
func (h *RetainerHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "activate_monthly":
		summary, err := h.activator.ActivateMonthly(c.Context())
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternalError, "retainer activation failed", fiber.StatusInternalServerError)
		}
		return response.OKVersioned(c, retainerVersion, summary)
	case "preview_activation":
		summary, err := h.activator.PreviewActivation(c.Context())
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternalError, "retainer preview failed", fiber.StatusInternalServerError)
		}
		return response.OKVersioned(c, retainerVersion, summary)
	case "get_retainer_config":
		configs, err := h.activator.Configs(c.Context())
		if err != nil {
			return apperr.DatabaseError("list retainer configs", err)
		}
		return response.OKVersioned(c, retainerVersion, fiber.Map{
			"configs": configs,
			"count":   len(configs),
		})
	default:
		return apperr.UnknownAction(req.Action)
	}
}
