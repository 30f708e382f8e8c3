package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hotelops/backend/internal/domain/assignments"
	"github.com/hotelops/backend/internal/domain/items"
	"github.com/hotelops/backend/internal/domain/ledger"
	"github.com/hotelops/backend/internal/domain/reports"
	"github.com/hotelops/backend/internal/infra/notify"
)

// Handler is the inbound surface for the CRUD pages. Org scope is an
// explicit org_id on every call; there is no ambient session state.
type Handler struct {
	log     *slog.Logger
	items   *items.Repo
	engine  *ledger.Engine
	assigns *assignments.Ledger
	reports *reports.Repo
	alerts  *notify.Alerter
}

func New(log *slog.Logger, itemsRepo *items.Repo, engine *ledger.Engine,
	assigns *assignments.Ledger, reportsRepo *reports.Repo, alerts *notify.Alerter) *Handler {
	return &Handler{
		log:     log,
		items:   itemsRepo,
		engine:  engine,
		assigns: assigns,
		reports: reportsRepo,
		alerts:  alerts,
	}
}

func (h *Handler) writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrItemNotFound),
		errors.Is(err, assignments.ErrNotAssigned):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidTransactionType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryOrgID(c *gin.Context) (int64, bool) {
	org, err := strconv.ParseInt(c.Query("org_id"), 10, 64)
	if err != nil || org <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id query parameter required"})
		return 0, false
	}
	return org, true
}

/* Items */

type thresholdsBody struct {
	MinLevel     float64 `json:"min_level"`
	ReorderLevel float64 `json:"reorder_level"`
	MaxLevel     float64 `json:"max_level"`
	ParLevel     float64 `json:"par_level"`
}

func (t thresholdsBody) domain() items.Thresholds {
	return items.Thresholds{
		MinLevel:     t.MinLevel,
		ReorderLevel: t.ReorderLevel,
		MaxLevel:     t.MaxLevel,
		ParLevel:     t.ParLevel,
	}
}

type createItemBody struct {
	OrgID      int64          `json:"org_id" binding:"required"`
	Code       string         `json:"code" binding:"required"`
	Name       string         `json:"name" binding:"required"`
	Kind       string         `json:"kind" binding:"required,oneof=stock linen"`
	Thresholds thresholdsBody `json:"thresholds"`
}

func (h *Handler) createItem(c *gin.Context) {
	var body createItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	it, err := h.items.Create(c.Request.Context(), items.CreateSpec{
		OrgID:      body.OrgID,
		Code:       body.Code,
		Name:       body.Name,
		Kind:       items.Kind(body.Kind),
		Thresholds: body.Thresholds.domain(),
	})
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, itemView(it))
}

func (h *Handler) listItems(c *gin.Context) {
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	onlyActive := c.DefaultQuery("only_active", "true") != "false"
	list, err := h.items.List(c.Request.Context(), org, onlyActive)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for i := range list {
		views = append(views, itemView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
}

type updateThresholdsBody struct {
	OrgID      int64          `json:"org_id" binding:"required"`
	Thresholds thresholdsBody `json:"thresholds"`
}

func (h *Handler) updateThresholds(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body updateThresholdsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	it, err := h.items.UpdateThresholds(c.Request.Context(), body.OrgID, id, body.Thresholds.domain())
	if err != nil {
		h.writeErr(c, err)
		return
	}
	if it == nil {
		h.writeErr(c, ledger.ErrItemNotFound)
		return
	}
	c.JSON(http.StatusOK, itemView(it))
}

func (h *Handler) deactivateItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	it, err := h.items.Deactivate(c.Request.Context(), org, id)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	if it == nil {
		h.writeErr(c, ledger.ErrItemNotFound)
		return
	}
	c.JSON(http.StatusOK, itemView(it))
}

func itemView(it *items.Item) gin.H {
	return gin.H{
		"id":      it.ID,
		"org_id":  it.OrgID,
		"code":    it.Code,
		"name":    it.Name,
		"kind":    it.Kind,
		"buckets": it.Buckets.Map(it.Kind),
		"total":   it.Total,
		"thresholds": gin.H{
			"min_level":     it.Thresholds.MinLevel,
			"reorder_level": it.Thresholds.ReorderLevel,
			"max_level":     it.Thresholds.MaxLevel,
			"par_level":     it.Thresholds.ParLevel,
		},
		"status":     it.Status(),
		"active":     it.Active,
		"created_at": it.CreatedAt,
	}
}

/* Ledger */

type applyBody struct {
	OrgID     int64    `json:"org_id" binding:"required"`
	Type      string   `json:"type" binding:"required"`
	Quantity  *float64 `json:"quantity" binding:"required"`
	ActorID   int64    `json:"actor_id" binding:"required"`
	Note      string   `json:"note"`
	Reference string   `json:"reference"`
}

func (h *Handler) applyTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body applyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Reference == "" {
		body.Reference = uuid.NewString()
	}
	it, entry, err := h.engine.Apply(c.Request.Context(), ledger.ApplyParams{
		OrgID:     body.OrgID,
		ItemID:    id,
		Type:      ledger.TxType(body.Type),
		Quantity:  *body.Quantity,
		ActorID:   body.ActorID,
		Note:      body.Note,
		Reference: body.Reference,
	})
	if err != nil {
		h.writeErr(c, err)
		return
	}
	h.alerts.LowStock(it)
	c.JSON(http.StatusCreated, gin.H{"item": itemView(it), "transaction": entry})
}

func (h *Handler) balance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	bal, err := h.reports.Balance(c.Request.Context(), org, id)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (h *Handler) history(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history, err := h.reports.History(c.Request.Context(), org, id, limit)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": history})
}

/* Assignments */

type assignBody struct {
	OrgID         int64    `json:"org_id" binding:"required"`
	ItemID        int64    `json:"item_id" binding:"required"`
	RecipientType string   `json:"recipient_type" binding:"required,oneof=room staff"`
	RecipientID   int64    `json:"recipient_id" binding:"required"`
	Quantity      *float64 `json:"quantity" binding:"required"`
	ActorID       int64    `json:"actor_id" binding:"required"`
	Note          string   `json:"note"`
}

func (h *Handler) assign(c *gin.Context) {
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.assigns.Assign(c.Request.Context(), assignments.AssignParams{
		OrgID:         body.OrgID,
		ItemID:        body.ItemID,
		RecipientType: body.RecipientType,
		RecipientID:   body.RecipientID,
		Quantity:      *body.Quantity,
		ActorID:       body.ActorID,
		Note:          body.Note,
		Reference:     uuid.NewString(),
	})
	if err != nil {
		h.writeErr(c, err)
		return
	}
	h.alerts.LowStock(res.Item)
	c.JSON(http.StatusCreated, gin.H{"item": itemView(res.Item), "transaction": res.Entry})
}

func (h *Handler) unassign(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	actorID, err := strconv.ParseInt(c.Query("actor_id"), 10, 64)
	if err != nil || actorID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id query parameter required"})
		return
	}
	err = h.assigns.Unassign(c.Request.Context(), org, c.Param("rtype"), rid, itemID, actorID)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) cart(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = &t
	}
	entries, err := h.assigns.CartFor(c.Request.Context(), org, c.Param("rtype"), rid, from, to)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": entries})
}

func (h *Handler) rebuildCart(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	entries, err := h.assigns.Rebuild(c.Request.Context(), org, c.Param("rtype"), rid)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": entries})
}

/* Reports */

func (h *Handler) lowStock(c *gin.Context) {
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	list, err := h.reports.LowStock(c.Request.Context(), org)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": itemViews(list)})
}

func (h *Handler) outOfStock(c *gin.Context) {
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	list, err := h.reports.OutOfStock(c.Request.Context(), org)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": itemViews(list)})
}

func itemViews(list []items.Item) []gin.H {
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, itemView(&list[i]))
	}
	return out
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) exportStock(c *gin.Context) {
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	data, name, err := h.reports.ExportStock(c.Request.Context(), org)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) exportHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	org, ok := queryOrgID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	data, name, err := h.reports.ExportHistory(c.Request.Context(), org, id, limit)
	if err != nil {
		h.writeErr(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
