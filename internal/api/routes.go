package api

import "github.com/gin-gonic/gin"

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/items", h.createItem)
	api.GET("/items", h.listItems)
	api.PATCH("/items/:id/thresholds", h.updateThresholds)
	api.DELETE("/items/:id", h.deactivateItem)

	api.POST("/items/:id/transactions", h.applyTransaction)
	api.GET("/items/:id/balance", h.balance)
	api.GET("/items/:id/history", h.history)

	api.POST("/assignments", h.assign)
	api.DELETE("/assignments/:rtype/:rid/items/:itemID", h.unassign)
	api.GET("/carts/:rtype/:rid", h.cart)
	api.POST("/carts/:rtype/:rid/rebuild", h.rebuildCart)

	api.GET("/reports/low-stock", h.lowStock)
	api.GET("/reports/out-of-stock", h.outOfStock)
	api.GET("/reports/stock.xlsx", h.exportStock)
	api.GET("/reports/items/:id/history.xlsx", h.exportHistory)
}
