package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/service/workitem"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/response"
)

const workItemVersion = "1.2.0"

// WorkItemHandler exposes work-item client enrichment.
type WorkItemHandler struct {
	enricher *workitem.Service
}

// NewWorkItemHandler creates a new WorkItemHandler.
func NewWorkItemHandler(enricher *workitem.Service) *WorkItemHandler {
	return &WorkItemHandler{enricher: enricher}
}

// RegisterRoutes registers work-item routes.
func (h *WorkItemHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/work-items", h.Handle)
}

// Handle routes one work-item action.
func (h *WorkItemHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "enrich_orphans":
		summary, err := h.enricher.EnrichOrphans(c.Context())
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternalError, "work-item enrichment failed", fiber.StatusInternalServerError)
		}
		return response.OKVersioned(c, workItemVersion, summary)
	default:
		return apperr.UnknownAction(req.Action)
	}
}
