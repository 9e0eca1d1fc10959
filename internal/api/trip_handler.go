package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"travelmap/internal/db"
	"travelmap/internal/itinerary"
	"travelmap/internal/pipeline"
	"travelmap/internal/planner"
)

// TripHandler handles HTTP requests for trips
type TripHandler struct {
	mgr *planner.Manager
}

func NewTripHandler(mgr *planner.Manager) *TripHandler {
	return &TripHandler{mgr: mgr}
}

// ListTrips handles GET /api/v1/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.mgr.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if trips == nil {
		trips = []db.TripSummary{}
	}
	success(c, trips)
}

// GetTrip handles GET /api/v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	t, err := h.mgr.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, t)
}

// PutTrip handles PUT /api/v1/trips/:id. The id in the path wins over the body.
func (h *TripHandler) PutTrip(c *gin.Context) {
	var t itinerary.Trip
	if err := c.ShouldBindJSON(&t); err != nil {
		fail(c, http.StatusBadRequest, "invalid trip: "+err.Error())
		return
	}
	t.ID = c.Param("id")
	if err := h.mgr.Put(c.Request.Context(), &t); err != nil {
		h.writeError(c, err)
		return
	}
	success(c, &t)
}

// DeleteTrip handles DELETE /api/v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	if err := h.mgr.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	success(c, nil)
}

// RunTrip handles POST /api/v1/trips/:id/run?level=
func (h *TripHandler) RunTrip(c *gin.Context) {
	var level pipeline.Level
	if q := c.Query("level"); q != "" {
		l, err := pipeline.ParseLevel(q)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		level = l
	}
	res, err := h.mgr.Run(c.Request.Context(), c.Param("id"), level)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, res)
}

// GetReport handles GET /api/v1/trips/:id/report
func (h *TripHandler) GetReport(c *gin.Context) {
	rep, err := h.mgr.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, rep)
}

// ClearTimes handles POST /api/v1/trips/:id/clear?onlyUnlocked=
func (h *TripHandler) ClearTimes(c *gin.Context) {
	onlyUnlocked, err := strconv.ParseBool(c.DefaultQuery("onlyUnlocked", "false"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid onlyUnlocked")
		return
	}
	h.update(c, func(t *itinerary.Trip) error {
		t.Segments = itinerary.ClearTimes(t.Segments, onlyUnlocked)
		return nil
	})
}

// Enqueue handles POST /api/v1/trips/:id/queue/:segmentId
func (h *TripHandler) Enqueue(c *gin.Context) {
	id := c.Param("segmentId")
	h.update(c, func(t *itinerary.Trip) error { return t.Enqueue(id) })
}

// Dequeue handles POST /api/v1/trips/:id/dequeue/:segmentId?at=
// Without at the stop goes just before trip_end.
func (h *TripHandler) Dequeue(c *gin.Context) {
	id := c.Param("segmentId")
	at, ok := intQuery(c, "at", -1)
	if !ok {
		return
	}
	h.update(c, func(t *itinerary.Trip) error {
		if at < 0 {
			at = len(t.Segments)
		}
		return t.Dequeue(id, at)
	})
}

// Move handles POST /api/v1/trips/:id/move/:segmentId?to=
func (h *TripHandler) Move(c *gin.Context) {
	id := c.Param("segmentId")
	to, ok := intQuery(c, "to", -1)
	if !ok {
		return
	}
	if to < 0 {
		fail(c, http.StatusBadRequest, "missing to")
		return
	}
	h.update(c, func(t *itinerary.Trip) error { return t.Move(id, to) })
}

func (h *TripHandler) update(c *gin.Context, fn func(*itinerary.Trip) error) {
	t, err := h.mgr.Update(c.Request.Context(), c.Param("id"), fn)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, t)
}

func (h *TripHandler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, itinerary.ErrSegmentNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, itinerary.ErrNotMovable):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		fail(c, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return n, true
}
