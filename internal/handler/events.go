package handler

import (
	"net/http"
	"strconv"

	"poscore/internal/apierror"
	"poscore/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultReplayBatch = 100

// EventsHandler exposes the dead letter queue of the event pipeline. rdb may
// be nil, in which case every endpoint answers 503.
type EventsHandler struct{ rdb *redis.Client }

func NewEventsHandler(rdb *redis.Client) *EventsHandler { return &EventsHandler{rdb: rdb} }

func (h *EventsHandler) available(c *gin.Context) bool {
	if h.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, apierror.WithCode("unavailable", "La cola de eventos está deshabilitada"))
		return false
	}
	return true
}

// DeadLetters godoc
// @Summary Cantidad de eventos en la cola de fallidos
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Failure 503 {object} apierror.APIError
// @Router /v1/events/dead-letters [get]
func (h *EventsHandler) DeadLetters(c *gin.Context) {
	if !h.available(c) {
		return
	}
	n, err := worker.DLQLength(c.Request.Context(), h.rdb, worker.QueueEvents)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": n})
}

// ReplayDeadLetters godoc
// @Summary Reencola eventos fallidos para un nuevo intento de publicación
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param max query int false "Máximo de eventos a reencolar (100 por defecto)"
// @Success 200 {object} map[string]int64
// @Failure 400 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/events/dead-letters/replay [post]
func (h *EventsHandler) ReplayDeadLetters(c *gin.Context) {
	if !h.available(c) {
		return
	}
	max := defaultReplayBatch
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", "max inválido"))
			return
		}
		max = n
	}

	ctx := c.Request.Context()
	replayed, err := worker.ReplayDLQ(ctx, h.rdb, worker.QueueEvents, max)
	if err != nil {
		_ = c.Error(err)
		return
	}
	pending, err := worker.DLQLength(ctx, h.rdb, worker.QueueEvents)
	if err != nil {
		_ = c.Error(err)
		return
	}
	log.Info().Int("replayed", replayed).Int64("pending", pending).Msg("dead letter events replayed")
	c.JSON(http.StatusOK, gin.H{"replayed": replayed, "pending": pending})
}
