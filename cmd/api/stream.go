package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/printflow/job-lifecycle/pkg/contracts/openapi"
	"github.com/printflow/job-lifecycle/pkg/errors"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/middleware"

	"github.com/printflow/job-lifecycle/internal/application"
	"github.com/printflow/job-lifecycle/internal/notifier"
)

// streamEventsHandler serves the real-time channel as server-sent events.
// ?types=a,b restricts the session to those event types.
func streamEventsHandler(service *application.JobLifecycleService, hub *notifier.Hub, resync time.Duration, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		session, err := hub.Subscribe(parseTypes(c.Query("types"))...)
		if err != nil {
			responder.RespondServiceUnavailable("notifier")
			return
		}
		defer session.Close()

		ctx := c.Request.Context()
		logger.SessionOpened(ctx, session.ID, session.Types())
		defer func() {
			delivered, dropped := session.Stats()
			logger.SessionClosed(ctx, session.ID, delivered, dropped)
		}()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		reconciler := notifier.NewReconciler(session, service, resync, logger)
		err = reconciler.Run(ctx, func(frame notifier.Frame) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.Render(-1, sse.Event{Id: frame.ID, Event: frame.Event, Data: frame.Data})
			c.Writer.Flush()
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("Event stream ended", "sessionId", session.ID)
		}
	}
}

func parseTypes(raw string) []string {
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// contractValidation rejects requests that do not match the HTTP contract
func contractValidation(v *openapi.Validator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.ValidateRequest(c.Request.Context(), c.Request); err != nil {
			appErr := errors.ErrValidation("request does not match the API contract").Wrap(err)
			middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(appErr)
			c.Abort()
			return
		}
		c.Next()
	}
}
