package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-planner/internal/broadcast"
	"github.com/iliyamo/event-planner/internal/lock"
	"github.com/iliyamo/event-planner/internal/model"
	"github.com/iliyamo/event-planner/internal/mutate"
	"github.com/iliyamo/event-planner/internal/queue"
	"github.com/iliyamo/event-planner/internal/store"
	"github.com/iliyamo/event-planner/internal/validate"
)

// maxBodyBytes bounds PUT request bodies.  The largest resource is the
// full RSVP list, which stays far below this at the intended scale.
const maxBodyBytes = 4 << 20

// ResourceHandler serves reads and mutations of the named resources.  GET
// never takes the resource lock; PUT runs through the atomic mutator and,
// on success, publishes the committed value to the hub, invalidates the
// response cache and emits an audit event.
type ResourceHandler struct {
	docs         store.DocumentStore
	mutator      *mutate.Mutator
	hub          *broadcast.Hub
	invalidate   func(resource string)                // optional
	publishAudit func(event queue.ResourceUpdatedEvent) // optional
}

// NewResourceHandler constructs a ResourceHandler.  docs, mutator and hub
// must be non-nil; invalidate and publishAudit may be nil when the
// corresponding subsystem is disabled.
func NewResourceHandler(docs store.DocumentStore, mutator *mutate.Mutator, hub *broadcast.Hub,
	invalidate func(string), publishAudit func(queue.ResourceUpdatedEvent)) *ResourceHandler {
	if docs == nil || mutator == nil || hub == nil {
		panic("nil dependency passed to NewResourceHandler")
	}
	return &ResourceHandler{
		docs:         docs,
		mutator:      mutator,
		hub:          hub,
		invalidate:   invalidate,
		publishAudit: publishAudit,
	}
}

// Get handles GET /v1/resources/:name.  It returns the stored value, or
// the resource's default when nothing has been written yet.  Reads bypass
// the lock and may be stale relative to a mutation about to commit.
func (h *ResourceHandler) Get(c echo.Context) error {
	name := c.Param("name")
	def, known := model.Default(name)
	if !known {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown resource"})
	}
	value, found, err := h.docs.Read(name)
	if err != nil {
		c.Logger().Errorf("read %s: %v", name, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "storage failure"})
	}
	if !found {
		value = def
	}
	return c.JSONBlob(http.StatusOK, value)
}

// Put handles PUT /v1/resources/:name.  The body is the candidate new
// value for the whole resource.  The rsvps resource runs the seat-conflict
// validator; every other resource is replaced wholesale.  Structural
// validation happens before any lock is taken.
func (h *ResourceHandler) Put(c echo.Context) error {
	name := c.Param("name")
	def, known := model.Default(name)
	if !known {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown resource"})
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable request body"})
	}

	var transform mutate.Transform
	switch name {
	case model.ResourceRSVPs:
		var incoming []model.RSVP
		// A nil slice after a successful unmarshal means the body was
		// "null", which is not a list either.
		if err := json.Unmarshal(body, &incoming); err != nil || incoming == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "rsvps must be a list of RSVP records"})
		}
		transform = validate.ReplaceRSVPs(incoming, json.RawMessage(body))
	default:
		if !json.Valid(body) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "request body must be valid JSON"})
		}
		transform = mutate.Replace(json.RawMessage(body))
	}

	stored, err := h.mutator.Mutate(name, def, transform)
	if err != nil {
		var conflict *validate.ConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": conflict.Error()})
		case errors.Is(err, lock.ErrLockTimeout):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "server busy, retry shortly"})
		default:
			c.Logger().Errorf("mutate %s: %v", name, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "storage failure"})
		}
	}

	h.hub.Publish(name, stored)
	if h.invalidate != nil {
		h.invalidate(name)
	}
	if h.publishAudit != nil {
		h.publishAudit(queue.NewResourceUpdatedEvent(name, subjectOf(c), len(stored)))
	}
	return c.JSON(http.StatusOK, echo.Map{"resource": name, "value": json.RawMessage(stored)})
}

// subjectOf extracts the authenticated subject placed in the context by the
// JWT middleware, or "anonymous" when absent.
func subjectOf(c echo.Context) string {
	if v, ok := c.Get("subject").(string); ok && v != "" {
		return v
	}
	return "anonymous"
}
