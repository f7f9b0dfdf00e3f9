package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/domain"
	"bizops_server/core/service/crmsync"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/response"
)

const syncVersion = "2.1.0"

// SyncHandler exposes the CRM cache sync.
type SyncHandler struct {
	sync *crmsync.Service
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sync *crmsync.Service) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// RegisterRoutes registers CRM sync routes.
func (h *SyncHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/crm-sync", h.Handle)
}

// Handle routes one sync action.
func (h *SyncHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "sync_companies":
		return h.syncObject(c, domain.ObjectCompanies)
	case "sync_contacts":
		return h.syncObject(c, domain.ObjectContacts)
	case "sync_deals":
		return h.syncObject(c, domain.ObjectDeals)
	case "sync_tickets":
		return h.syncObject(c, domain.ObjectTickets)
	case "sync_all":
		summary, err := h.sync.SyncAll(c.Context())
		if err != nil {
			return apperr.CRMError("sync all objects", err)
		}
		return response.OKVersioned(c, syncVersion, summary)
	case "get_sync_status":
		status, err := h.sync.SyncStatus(c.Context())
		if err != nil {
			return apperr.DatabaseError("read sync status", err)
		}
		return response.OKVersioned(c, syncVersion, status)
	case "reset_sync_cursor":
		if req.ObjectType == "" {
			return apperr.MissingField("object_type")
		}
		if err := h.sync.ResetCursor(c.Context(), req.ObjectType); err != nil {
			return apperr.BadRequest(err.Error())
		}
		return response.OKVersioned(c, syncVersion, fiber.Map{
			"object_type": req.ObjectType,
			"reset":       true,
		})
	default:
		return apperr.UnknownAction(req.Action)
	}
}

func (h *SyncHandler) syncObject(c *fiber.Ctx, objectType string) error {
	summary, err := h.sync.SyncObject(c.Context(), objectType)
	if err != nil {
		return apperr.CRMError("sync "+objectType, err)
	}
	return response.OKVersioned(c, syncVersion, summary)
}
