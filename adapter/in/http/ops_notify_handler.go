package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/response"
	"bizops_server/pkg/snowflake"
)

const notifyVersion = "1.4.0"

// NotifyHandler exposes direct chat notification posting.
type NotifyHandler struct {
	notifier out.Notifier
	audits   out.AuditRepository
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(notifier out.Notifier, audits out.AuditRepository) *NotifyHandler {
	return &NotifyHandler{
		notifier: notifier,
		audits:   audits,
	}
}

// RegisterRoutes registers notify routes.
func (h *NotifyHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/notify", h.Post)
}

type notifyRequest struct {
	Subject        string  `json:"subject"`
	SenderEmail    string  `json:"sender_email"`
	EmailType      string  `json:"email_type"`
	Priority       string  `json:"priority"`
	ActionBucket   string  `json:"action_bucket"`
	CompanyName    string  `json:"company_name,omitempty"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning,omitempty"`
	EscalationPath string  `json:"escalation_path"`
}

// Post sends one notification, skipping non-slack escalations.
func (h *NotifyHandler) Post(c *fiber.Ctx) error {
	var req notifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Subject == "" {
		return apperr.MissingField("subject")
	}

	if req.EscalationPath != domain.EscalationSlack {
		return response.OKVersioned(c, notifyVersion, fiber.Map{
			"sent":            false,
			"skipped":         true,
			"escalation_path": req.EscalationPath,
		})
	}

	err := h.notifier.Post(c.Context(), &out.Notification{
		Subject:      req.Subject,
		SenderEmail:  req.SenderEmail,
		EmailType:    req.EmailType,
		Priority:     req.Priority,
		ActionBucket: req.ActionBucket,
		CompanyName:  req.CompanyName,
		Confidence:   req.Confidence,
		Reasoning:    req.Reasoning,
	})
	if err != nil {
		return apperr.ExternalError("slack", err)
	}

	h.writeAudit(c, &req)

	return response.OKVersioned(c, notifyVersion, fiber.Map{
		"sent": true,
	})
}

func (h *NotifyHandler) writeAudit(c *fiber.Ctx, req *notifyRequest) {
	entry := &domain.AuditEntry{
		RunID:     snowflake.ID(),
		Handler:   "slack-notify",
		Action:    "notify",
		Processed: 1,
		Detail: map[string]any{
			"email_type": req.EmailType,
			"priority":   req.Priority,
		},
	}
	if err := h.audits.Write(c.Context(), entry); err != nil {
		logger.WithError(err).Warn("audit write failed")
	}
}
