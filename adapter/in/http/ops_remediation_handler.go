package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/service/remediation"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/response"
)

const remediationVersion = "1.3.0"

// RemediationHandler exposes association data-quality repair.
type RemediationHandler struct {
	remediator *remediation.Service
}

// NewRemediationHandler creates a new RemediationHandler.
func NewRemediationHandler(remediator *remediation.Service) *RemediationHandler {
	return &RemediationHandler{remediator: remediator}
}

// RegisterRoutes registers remediation routes.
func (h *RemediationHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/remediation", h.Handle)
}

// Handle routes one remediation action.
func (h *RemediationHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "remediate_ticket_companies":
		summary, err := h.remediator.RemediateTickets(c.Context(), false)
		if err != nil {
			return apperr.CRMError("remediate ticket companies", err)
		}
		return response.OKVersioned(c, remediationVersion, summary)
	case "remediate_contact_companies":
		summary, err := h.remediator.RemediateContacts(c.Context(), false)
		if err != nil {
			return apperr.CRMError("remediate contact companies", err)
		}
		return response.OKVersioned(c, remediationVersion, summary)
	case "preview_remediations":
		return h.preview(c)
	case "get_remediation_status":
		status, err := h.remediator.RemediationStatus(c.Context())
		if err != nil {
			return apperr.DatabaseError("read remediation status", err)
		}
		return response.OKVersioned(c, remediationVersion, status)
	default:
		return apperr.UnknownAction(req.Action)
	}
}

// preview runs both passes in preview mode; nothing is written.
func (h *RemediationHandler) preview(c *fiber.Ctx) error {
	tickets, err := h.remediator.RemediateTickets(c.Context(), true)
	if err != nil {
		return apperr.CRMError("preview ticket remediations", err)
	}

	contacts, err := h.remediator.RemediateContacts(c.Context(), true)
	if err != nil {
		return apperr.CRMError("preview contact remediations", err)
	}

	return response.OKVersioned(c, remediationVersion, fiber.Map{
		"tickets":  tickets,
		"contacts": contacts,
	})
}
