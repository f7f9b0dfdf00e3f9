package http

import (
	"github.com/gofiber/fiber/v2"
)

// actionRequest is the shared body shape of the action-routed handlers.
// Every operational route takes one POST with an action selector plus the
// action's parameters; unknown fields are ignored.
type actionRequest struct {
	Action     string `json:"action"`
	Limit      int    `json:"limit,omitempty"`
	MessageID  int64  `json:"message_id,omitempty"`
	ObjectType string `json:"object_type,omitempty"`
	FolderID   string `json:"folder_id,omitempty"`
	Query      string `json:"query,omitempty"`
}

// parseAction reads the action selector from the query string or body.
// The query string wins so curl invocations stay one-liners.
func parseAction(c *fiber.Ctx) (*actionRequest, error) {
	req := &actionRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if action := c.Query("action"); action != "" {
		req.Action = action
	}
	return req, nil
}
