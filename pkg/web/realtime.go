package web

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/dukex/nodeflow/pkg/realtime"
)

// CreateRealtimeToken issues a short-lived token for one status channel.
func (h *APIHandlers) CreateRealtimeToken(c fiber.Ctx) error {
	var req CreateTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	token, err := h.tokens.Issue(c.Context(), req.Channel)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(token)
}

// SubscribeRealtime streams the status events of the token's channel as
// server-sent events until the token expires or the client goes away.
func (h *APIHandlers) SubscribeRealtime(c fiber.Ctx) error {
	token, err := h.tokens.Verify(c.Context(), c.Query("token"))
	if err != nil {
		return handleServiceError(c, err)
	}

	events, unsubscribe := h.hub.Subscribe(token.Channel)
	logger := h.logger.With("channel", token.Channel)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	heartbeat := h.heartbeat

	c.Response().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		expiry := time.NewTimer(time.Until(token.ExpiresAt))
		defer expiry.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}

				if err := writeEvent(w, event); err != nil {
					logger.Debug("Status stream closed", "error", err)

					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}

				if err := w.Flush(); err != nil {
					logger.Debug("Status stream closed", "error", err)

					return
				}
			case <-expiry.C:
				return
			}
		}
	})

	return nil
}

func writeEvent(w *bufio.Writer, event realtime.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data); err != nil {
		return err
	}

	return w.Flush()
}
