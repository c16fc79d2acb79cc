package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/auth"
	"github.com/Hons90/CRM/internal/pools"
	"github.com/Hons90/CRM/pkg/logger"

	"github.com/gin-gonic/gin"
)

const uploadFormField = "file"

type createPoolRequest struct {
	Name       string `json:"pool_name"`
	UploadedBy *int64 `json:"uploaded_by"`
}

func (h Handlers) ListPools(c *gin.Context) {
	if h.Pools == nil {
		notConfigured(c, "dialer pools")
		return
	}
	list, err := h.Pools.ListPools(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreatePool adds an empty pool. uploaded_by defaults to the caller.
func (h Handlers) CreatePool(c *gin.Context) {
	if h.Pools == nil {
		notConfigured(c, "dialer pools")
		return
	}
	actor, ok := identity(c)
	if !ok {
		return
	}
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	uploadedBy := req.UploadedBy
	if uploadedBy == nil {
		uploadedBy = &actor.UserID
	}
	p, err := h.Pools.CreatePool(c.Request.Context(), req.Name, uploadedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditPool(c, actor, p.ID, "dialer pool created", "")
	c.JSON(http.StatusCreated, p)
}

// UploadNumbers imports column A of the first sheet of an .xlsx upload.
func (h Handlers) UploadNumbers(c *gin.Context) {
	if h.Pools == nil {
		notConfigured(c, "dialer pools")
		return
	}
	actor, ok := identity(c)
	if !ok {
		return
	}
	poolID, ok := pathID(c)
	if !ok {
		return
	}

	if h.UploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.UploadMaxBytes)
	}
	fh, err := c.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if err := pools.CheckSpreadsheetName(fh.Filename); err != nil {
		writeError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()

	rows, err := pools.ParseSpreadsheet(f)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.Pools.ImportNumbers(c.Request.Context(), poolID, rows)
	if err != nil {
		writeError(c, err)
		return
	}

	logger.FromGin(c).Info("pool upload processed", "pool_id", poolID, "file", fh.Filename, "size", fh.Size)
	h.auditPool(c, actor, poolID, "dialer numbers uploaded",
		fmt.Sprintf(`{"file":%q,"imported":%d,"totalRows":%d}`, fh.Filename, res.Imported, res.TotalRows))

	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Imported %d numbers successfully.", res.Imported),
		"totalRows": res.TotalRows,
		"imported":  res.Imported,
	})
}

func (h Handlers) ListNumbers(c *gin.Context) {
	if h.Pools == nil {
		notConfigured(c, "dialer pools")
		return
	}
	poolID, ok := pathID(c)
	if !ok {
		return
	}
	nums, err := h.Pools.ListNumbers(c.Request.Context(), poolID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nums)
}

func (h Handlers) PoolProgress(c *gin.Context) {
	if h.Reports == nil {
		notConfigured(c, "reporting")
		return
	}
	poolID, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.Reports.PoolProgress(c.Request.Context(), poolID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) DeletePool(c *gin.Context) {
	if h.Pools == nil {
		notConfigured(c, "dialer pools")
		return
	}
	actor, ok := identity(c)
	if !ok {
		return
	}
	poolID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Pools.DeletePool(c.Request.Context(), poolID); err != nil {
		writeError(c, err)
		return
	}
	h.auditPool(c, actor, poolID, "dialer pool deleted", "")
	c.JSON(http.StatusOK, gin.H{"message": "Dialer pool " + strconv.FormatInt(poolID, 10) + " deleted"})
}

func (h Handlers) auditPool(c *gin.Context, actor auth.Identity, poolID int64, message, metadata string) {
	if h.Audit == nil {
		return
	}
	h.Audit.LogAdminAction(c.Request.Context(), actor.UserID, actor.Role, audit.TargetPool, poolID, message, metadata)
}
