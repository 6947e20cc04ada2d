package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/models"
	"github.com/wenwu/saas-platform/ipam-service/internal/service"
)

type Handler struct {
	allocationService  *service.AllocationService
	retirementService  *service.RetirementService
	reservationService *service.ReservationService
	auditLedger        *service.AuditLedger
	index              *service.AddressSpaceIndex
}

func NewHandler(
	allocationService *service.AllocationService,
	retirementService *service.RetirementService,
	reservationService *service.ReservationService,
	auditLedger *service.AuditLedger,
	index *service.AddressSpaceIndex,
) *Handler {
	return &Handler{
		allocationService:  allocationService,
		retirementService:  retirementService,
		reservationService: reservationService,
		auditLedger:        auditLedger,
		index:              index,
	}
}

// statusForKind maps service error kinds onto HTTP status codes.
// 冲突重试耗尽返回 503，客户端应退避后重试
func statusForKind(kind ipam.Kind) int {
	switch kind {
	case ipam.KindValidation:
		return http.StatusBadRequest
	case ipam.KindNotFound:
		return http.StatusNotFound
	case ipam.KindPermission, ipam.KindQuotaExceeded:
		return http.StatusForbidden
	case ipam.KindConflict, ipam.KindCapacityExhausted:
		return http.StatusConflict
	case ipam.KindConflictRetryExceeded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := ipam.KindOf(err)
	c.JSON(statusForKind(kind), gin.H{
		"error":      err.Error(),
		"error_kind": string(kind),
	})
}

func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", false
	}
	return userID, true
}

// ==================== Allocation Handlers ====================

// AllocateRegion claims the next free region slot in a country
func (h *Handler) AllocateRegion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.AllocateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	region, err := h.allocationService.AllocateRegion(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"region": region})
}

// UpdateRegion changes the label or tags of an owned region
func (h *Handler) UpdateRegion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Label string   `json:"label"`
		Tags  []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	region, err := h.allocationService.UpdateRegion(c.Request.Context(), userID, c.Param("id"), req.Label, req.Tags)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"region": region})
}

// AllocateHost claims the next free host offset in a region
func (h *Handler) AllocateHost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.AllocateHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	host, err := h.allocationService.AllocateHost(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"host": host})
}

// AllocateHostsBatch claims up to 100 host offsets, best effort.
// 部分失败不影响已成功的条目，整体返回 200
func (h *Handler) AllocateHostsBatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.AllocateHostsBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.allocationService.AllocateHostsBatch(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ==================== Retirement Handlers ====================

// RetireRegion deletes an owned region, cascading to hosts when asked
func (h *Handler) RetireRegion(c *gin.Context) {
	h.retire(c, models.ResourceTypeRegion)
}

// RetireHost deletes an owned host
func (h *Handler) RetireHost(c *gin.Context) {
	h.retire(c, models.ResourceTypeHost)
}

func (h *Handler) retire(c *gin.Context, resourceType string) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.RetireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.retirementService.Retire(c.Request.Context(), userID, resourceType, c.Param("id"), req.Reason, req.Cascade)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_record": record})
}

// ==================== Reservation Handlers ====================

// CreateReservation places a time-bounded hold on a coordinate
func (h *Handler) CreateReservation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reservation, err := h.reservationService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reservation": reservation})
}

// ConvertReservation turns an active reservation into a real allocation
func (h *Handler) ConvertReservation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.reservationService.Convert(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelReservation releases an active reservation
func (h *Handler) CancelReservation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationService.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// ListReservations lists the caller's reservations with effective states
func (h *Handler) ListReservations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reservations, err := h.reservationService.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

// ==================== Read-side Handlers ====================

// ListMyRegions lists the regions owned by the caller
func (h *Handler) ListMyRegions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	regions, err := h.allocationService.ListRegions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"regions": regions})
}

// GetQuota reports the caller's region and host quota usage
func (h *Handler) GetQuota(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	infos, err := h.allocationService.Quota(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotas": infos})
}

// InterpretAddress resolves a dotted address like "DE.3.7.12"
func (h *Handler) InterpretAddress(c *gin.Context) {
	info, err := h.allocationService.Interpret(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// LookupHostAddress formats the address of a host offset inside a region
func (h *Handler) LookupHostAddress(c *gin.Context) {
	z, err := strconv.Atoi(c.Param("z"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid host offset"})
		return
	}

	info, err := h.allocationService.Lookup(c.Request.Context(), c.Param("id"), z)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// GetCountries lists the seeded address space
func (h *Handler) GetCountries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"countries": h.index.Countries()})
}

// GetContinents lists continents with their countries
func (h *Handler) GetContinents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"continents": h.index.Continents()})
}

// ==================== Internal API Handlers ====================

// GetAuditHistory queries the audit trail (internal API, called by user-portal)
func (h *Handler) GetAuditHistory(c *gin.Context) {
	filter := models.AuditFilter{
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
		ActorID:      c.Query("actor_id"),
	}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp, want RFC3339"})
			return
		}
		filter.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp, want RFC3339"})
			return
		}
		filter.To = t
	}
	if v := c.Query("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := c.Query("page_size"); v != "" {
		filter.PageSize, _ = strconv.Atoi(v)
	}

	page, err := h.auditLedger.History(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
