package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/idempotency"
)

// IdempotencyHeader names the request header carrying the key.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses served from a completed key.
const ReplayedHeader = "Idempotent-Replayed"

// Idempotent operation names stored with each key.
const (
	opAddItem    = "add_item"
	opApplyPromo = "apply_promo"
)

// idempotent wraps fn so that a repeated Idempotency-Key replays the first
// successful response. fn reports false when it already wrote a request error.
// Any error outcome releases the key for another attempt.
func (h *basketHandler) idempotent(op string, fn func(*gin.Context) (result, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
			return
		}
		basketID, _ := strconv.ParseInt(c.Param("basketId"), 10, 64)

		ctx := c.Request.Context()
		rec, created, err := h.cfg.Idempotency.Begin(ctx, key, op, basketID)
		if err != nil {
			h.log.Error("idempotency claim failed", zap.String("idempotency_key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
			return
		}
		if !created {
			h.replay(c, rec, op, basketID)
			return
		}

		// completion must survive a client that hung up
		done := context.WithoutCancel(ctx)

		res, ok := fn(c)
		if !ok {
			if err := h.cfg.Idempotency.MarkFailed(done, key, fmt.Sprintf("rejected request: status %d", c.Writer.Status())); err != nil {
				h.log.Warn("idempotency release failed", zap.String("idempotency_key", key), zap.Error(err))
			}
			return
		}

		body, err := json.Marshal(res.body)
		if err != nil {
			_ = h.cfg.Idempotency.MarkFailed(done, key, "encode response: "+err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed"})
			return
		}
		if res.status >= http.StatusBadRequest {
			err = h.cfg.Idempotency.MarkFailed(done, key, string(body))
		} else {
			err = h.cfg.Idempotency.MarkDone(done, key, string(body), res.status)
		}
		if err != nil {
			h.log.Warn("idempotency completion failed", zap.String("idempotency_key", key), zap.Error(err))
		}
		c.Data(res.status, "application/json; charset=utf-8", body)
	}
}

func (h *basketHandler) replay(c *gin.Context, rec *idempotency.Record, op string, basketID int64) {
	if !rec.Matches(op, basketID) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		c.Header(ReplayedHeader, "true")
		if rec.ResponseBody == "" {
			c.Status(rec.ResponseStatus)
			return
		}
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": "request_in_progress"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status", "status": rec.Status})
	}
}
