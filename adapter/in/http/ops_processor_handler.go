package http

import (
	"github.com/gofiber/fiber/v2"

	"bizops_server/core/service/classify"
	"bizops_server/pkg/apperr"
	"bizops_server/pkg/response"
)

const processorVersion = "3.2.0"

// ProcessorHandler exposes the email classification pipeline.
type ProcessorHandler struct {
	classifier *classify.Service
	batchSize  int
}

// NewProcessorHandler creates a new ProcessorHandler.
func NewProcessorHandler(classifier *classify.Service, batchSize int) *ProcessorHandler {
	return &ProcessorHandler{
		classifier: classifier,
		batchSize:  batchSize,
	}
}

// RegisterRoutes registers processor routes.
func (h *ProcessorHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/processor", h.Handle)
}

// Handle routes one processor action.
func (h *ProcessorHandler) Handle(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}

	switch req.Action {
	case "classify_batch":
		return h.classifyBatch(c, req.Limit)
	case "classify_email":
		return h.classifyEmail(c, req.MessageID)
	case "get_classification_rules":
		return h.rules(c)
	default:
		return apperr.UnknownAction(req.Action)
	}
}

func (h *ProcessorHandler) classifyBatch(c *fiber.Ctx, limit int) error {
	if limit <= 0 {
		limit = h.batchSize
	}

	summary, err := h.classifier.ClassifyBatch(c.Context(), limit)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeClassifyFailed, "classification run failed", fiber.StatusInternalServerError)
	}

	// Partial failure still returns 200; the summary carries the error list.
	return response.OKVersioned(c, processorVersion, summary)
}

func (h *ProcessorHandler) classifyEmail(c *fiber.Ctx, messageID int64) error {
	if messageID == 0 {
		return apperr.MissingField("message_id")
	}

	summary, err := h.classifier.ClassifyMessage(c.Context(), messageID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeClassifyFailed, "classification failed", fiber.StatusInternalServerError)
	}

	return response.OKVersioned(c, processorVersion, summary)
}

func (h *ProcessorHandler) rules(c *fiber.Ctx) error {
	rules, err := h.classifier.Rules(c.Context())
	if err != nil {
		return apperr.DatabaseError("list classification rules", err)
	}

	return response.OKVersioned(c, processorVersion, fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}
