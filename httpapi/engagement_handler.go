package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"warehousematch/auth"
	"warehousematch/engagement"
)

// EngagementHandler serves the lifecycle surface: reads, the event endpoint,
// the timeline, and the payment schedule projection.
type EngagementHandler struct {
	service *engagement.Service
}

// NewEngagementHandler creates an engagement handler.
func NewEngagementHandler(service *engagement.Service) *EngagementHandler {
	return &EngagementHandler{service: service}
}

// Create seeds a new engagement from an accepted match. Admin only; the
// matching process itself is out of scope here.
func (h *EngagementHandler) Create(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok || identity.Role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, failure("admin access required", "FORBIDDEN"))
		return
	}

	var req CreateEngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request", "INVALID_REQUEST"))
		return
	}

	e, err := h.service.CreateFromMatch(c.Request.Context(), engagement.CreateMatchParams{
		BuyerID:        req.BuyerID,
		SupplierID:     req.SupplierID,
		Tier:           engagement.Tier(req.Tier),
		MatchScore:     req.MatchScore,
		MonthlyRate:    req.MonthlyRate,
		SizeSqft:       req.SizeSqft,
		LeaseStartDate: req.LeaseStartDate,
		LeaseEndDate:   req.LeaseEndDate,
	})
	if err != nil {
		writeEngagementError(c, err)
		return
	}

	c.JSON(http.StatusCreated, success(toEngagementDTO(e)))
}

// Get returns one engagement. Callers must be a party to it.
func (h *EngagementHandler) Get(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure("unauthorized", "UNAUTHORIZED"))
		return
	}

	e, err := h.service.GetEngagement(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeEngagementError(c, err)
		return
	}
	if !isParty(identity, e) {
		c.JSON(http.StatusForbidden, failure("not a party to this engagement", "FORBIDDEN"))
		return
	}

	c.JSON(http.StatusOK, success(toEngagementDTO(e)))
}

// List returns the caller's engagements, optionally narrowed to one display
// bucket via ?bucket=. Admins may list any side with ?buyer_id= or
// ?supplier_id=.
func (h *EngagementHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure("unauthorized", "UNAUTHORIZED"))
		return
	}

	filter := engagement.ListFilter{
		Bucket:   engagement.Bucket(c.Query("bucket")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	switch identity.Role {
	case auth.RoleBuyer:
		filter.BuyerID = identity.UserID
	case auth.RoleSupplier:
		filter.SupplierID = identity.UserID
	case auth.RoleAdmin:
		filter.BuyerID = c.Query("buyer_id")
		filter.SupplierID = c.Query("supplier_id")
	}

	engagements, total, err := h.service.ListEngagements(c.Request.Context(), filter)
	if err != nil {
		writeEngagementError(c, err)
		return
	}

	dtos := make([]EngagementDTO, len(engagements))
	for i, e := range engagements {
		dtos[i] = toEngagementDTO(e)
	}

	c.JSON(http.StatusOK, success(EngagementListResponse{
		Engagements: dtos,
		Total:       total,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
	}))
}

// ApplyEvent fires one lifecycle event against an engagement with optimistic
// concurrency: the request carries the version the caller last read.
func (h *EngagementHandler) ApplyEvent(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req ApplyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request", "INVALID_REQUEST"))
		return
	}

	id := c.Param("id")
	e, err := h.service.GetEngagement(c.Request.Context(), id)
	if err != nil {
		writeEngagementError(c, err)
		return
	}
	role, ok := actorRoleFor(identity, e)
	if !ok {
		c.JSON(http.StatusForbidden, failure("not a party to this engagement", "FORBIDDEN"))
		return
	}

	updated, err := h.service.Apply(c.Request.Context(), id, engagement.Event(req.Event), role, req.ExpectedVersion, engagement.Payload{
		Reason:       engagement.DeclineReason(req.Reason),
		Outcome:      engagement.TourOutcome(req.Outcome),
		Item:         engagement.ChecklistItem(req.Item),
		ProposedTime: req.ProposedTime,
		ManualClose:  req.ManualClose,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeEngagementError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(toEngagementDTO(updated)))
}

// Timeline returns the engagement's append-only event log ordered by seq.
func (h *EngagementHandler) Timeline(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure("unauthorized", "UNAUTHORIZED"))
		return
	}

	id := c.Param("id")
	e, err := h.service.GetEngagement(c.Request.Context(), id)
	if err != nil {
		writeEngagementError(c, err)
		return
	}
	if !isParty(identity, e) {
		c.JSON(http.StatusForbidden, failure("not a party to this engagement", "FORBIDDEN"))
		return
	}

	entries, err := h.service.GetTimeline(c.Request.Context(), id)
	if err != nil {
		writeEngagementError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(toTimelineDTO(entries)))
}

// PaymentSchedule returns the derived monthly installment projection for an
// engagement that has reached active.
func (h *EngagementHandler) PaymentSchedule(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure("unauthorized", "UNAUTHORIZED"))
		return
	}

	id := c.Param("id")
	e, err := h.service.GetEngagement(c.Request.Context(), id)
	if err != nil {
		writeEngagementError(c, err)
		return
	}
	if !isParty(identity, e) {
		c.JSON(http.StatusForbidden, failure("not a party to this engagement", "FORBIDDEN"))
		return
	}

	schedule, err := h.service.GetPaymentSchedule(c.Request.Context(), id)
	if err != nil {
		writeEngagementError(c, err)
		return
	}

	c.JSON(http.StatusOK, success(toScheduleDTO(schedule)))
}

// isParty reports whether the caller may read this engagement.
func isParty(identity auth.Identity, e engagement.Engagement) bool {
	if identity.Role == auth.RoleAdmin {
		return true
	}
	return identity.UserID == e.BuyerID || identity.UserID == e.SupplierID
}

// actorRoleFor resolves the caller into the engine actor role for this
// engagement. Admins act as the system.
func actorRoleFor(identity auth.Identity, e engagement.Engagement) (engagement.ActorRole, bool) {
	switch {
	case identity.Role == auth.RoleAdmin:
		return engagement.ActorSystem, true
	case identity.Role == auth.RoleBuyer && identity.UserID == e.BuyerID:
		return engagement.ActorBuyer, true
	case identity.Role == auth.RoleSupplier && identity.UserID == e.SupplierID:
		return engagement.ActorSupplier, true
	default:
		return "", false
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
