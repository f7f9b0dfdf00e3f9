package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bizops_server/core/port/out"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/response"
)

const mailboxVersion = "1.5.0"

// MailboxHandler is a thin ops surface over the monitored mailbox.
type MailboxHandler struct {
	mailbox out.Mailbox
	archive out.BodyArchive
}

// NewMailboxHandler creates a new MailboxHandler. The archive may be nil
// when no body store is configured.
func NewMailboxHandler(mailbox out.Mailbox, archive out.BodyArchive) *MailboxHandler {
	return &MailboxHandler{mailbox: mailbox, archive: archive}
}

// RegisterRoutes registers mailbox routes.
func (h *MailboxHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/mailbox", h.Handle)
}

// Handle routes one mailbox action.
func (h *MailboxHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "get_message":
		return h.getMessage(c, req)
	case "list_folders":
		return h.listFolders(c)
	case "move_message":
		return h.moveMessage(c, req)
	case "search":
		return h.search(c, req)
	default:
		return apperr.UnknownAction(req.Action)
	}
}

type mailboxRequest struct {
	ProviderID string `json:"provider_id"`
}

func (h *MailboxHandler) providerID(c *fiber.Ctx) (string, error) {
	var req mailboxRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", apperr.BadRequest("invalid request body")
		}
	}
	if req.ProviderID == "" {
		return "", apperr.MissingField("provider_id")
	}
	return req.ProviderID, nil
}

func (h *MailboxHandler) getMessage(c *fiber.Ctx, _ *actionRequest) error {
	id, err := h.providerID(c)
	if err != nil {
		return err
	}

	msg, err := h.mailbox.GetMessage(c.Context(), id)
	if err != nil {
		if errors.Is(err, out.ErrMessageGone) {
			return apperr.NotFound("message")
		}
		return apperr.MailboxError("get message", err)
	}

	// The queue table keeps only the preview; every full body that passes
	// through here lands in the archive. Best effort, the fetch already
	// succeeded.
	if h.archive != nil && msg.Body != "" {
		if err := h.archive.Store(c.Context(), msg.ID, msg.Body); err != nil {
			logger.WithError(err).WithField("message_id", msg.ID).
				Warn("body archive failed")
		}
	}

	return response.OKVersioned(c, mailboxVersion, msg)
}

func (h *MailboxHandler) listFolders(c *fiber.Ctx) error {
	folders, err := h.mailbox.ListFolders(c.Context())
	if err != nil {
		return apperr.MailboxError("list folders", err)
	}

	return response.OKVersioned(c, mailboxVersion, fiber.Map{
		"folders": folders,
		"count":   len(folders),
	})
}

func (h *MailboxHandler) moveMessage(c *fiber.Ctx, req *actionRequest) error {
	id, err := h.providerID(c)
	if err != nil {
		return err
	}
	if req.FolderID == "" {
		return apperr.MissingField("folder_id")
	}

	if err := h.mailbox.MoveMessage(c.Context(), id, req.FolderID); err != nil {
		if errors.Is(err, out.ErrMessageGone) {
			return apperr.NotFound("message")
		}
		return apperr.MailboxError("move message", err)
	}

	return response.OKVersioned(c, mailboxVersion, fiber.Map{
		"moved":     true,
		"folder_id": req.FolderID,
	})
}

func (h *MailboxHandler) search(c *fiber.Ctx, req *actionRequest) error {
	if req.Query == "" {
		return apperr.MissingField("query")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 25
	}

	messages, err := h.mailbox.Search(c.Context(), req.Query, limit)
	if err != nil {
		return apperr.MailboxError("search", err)
	}

	return response.OKVersioned(c, mailboxVersion, fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}
