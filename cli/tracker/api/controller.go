package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	Handler *Handler
	router  *gin.Engine
}

func NewController(handler *Handler) *Controller {
	router := gin.Default()

	api := router.Group("/api")
	{
		api.GET("/points_summary", handler.PointsSummary)
		api.GET("/trips_for_map", handler.TripsForMap)
		api.GET("/oids", handler.GetOIDs)
		api.GET("/routes", handler.GetRoutes)

		api.POST("/forms/save", handler.SaveForm)
		api.GET("/forms", handler.GetForms)
		api.GET("/forms/:form_id", handler.GetForm)
		api.GET("/forms/:form_id/export_xlsx", handler.ExportFormXlsx)
	}

	return &Controller{Handler: handler, router: router}
}

func (c *Controller) Run(port int32) error {
	return c.router.Run(fmt.Sprintf(":%d", port))
}
