package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/dialer"

	"github.com/gin-gonic/gin"
)

// optionalID accepts a JSON number, a numeric string, "" or null.
// Browser clients send the pool id straight from a select element.
type optionalID struct {
	ID *int64
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		o.ID = nil
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			o.ID = nil
			return nil
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %s", b)
	}
	o.ID = &id
	return nil
}

type dialRequest struct {
	PoolID      optionalID `json:"poolId"`
	PhoneNumber string     `json:"phoneNumber"`
}

// Dial places a call for the caller and returns {callLog, callResult}.
func (h Handlers) Dial(c *gin.Context) {
	if h.Dialer == nil {
		notConfigured(c, "dialer")
		return
	}
	id, ok := identity(c)
	if !ok {
		return
	}
	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Dialer.Dial(c.Request.Context(), dialer.DialRequest{
		UserID:      id.UserID,
		PoolID:      req.PoolID.ID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Qualify records the agent's outcome for a call. Omitted fields keep their value.
func (h Handlers) Qualify(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "call log")
		return
	}
	if _, ok := identity(c); !ok {
		return
	}
	callID, ok := pathID(c)
	if !ok {
		return
	}
	var req calls.QualifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	entry, err := h.Calls.Qualify(c.Request.Context(), callID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CallLogs lists the caller's logs, newest first, optionally for one pool.
func (h Handlers) CallLogs(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "call log")
		return
	}
	id, ok := identity(c)
	if !ok {
		return
	}
	var poolID *int64
	if raw := strings.TrimSpace(c.Query("poolId")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid poolId"})
			return
		}
		poolID = &v
	}
	logs, err := h.Calls.ListForUser(c.Request.Context(), id.UserID, poolID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
