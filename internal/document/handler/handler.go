package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/mongomodel/handlers"
	"github.com/gogotex/mongomodel/internal/document"
	"github.com/gogotex/mongomodel/internal/document/service"
	"github.com/gogotex/mongomodel/pkg/model"
)

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(handlers.StatusFor(err), gin.H{"error": model.KindOf(err).String(), "message": err.Error()})
}

func RegisterDocumentRoutes(r gin.IRouter, svc *service.Service) {
	r.GET("/api/documents", func(c *gin.Context) {
		var limit int64
		if s := c.Query("limit"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
				return
			}
			limit = n
		}
		list, err := svc.List(c.Request.Context(), c.Query("owner_id"), limit)
		if err != nil {
			fail(c, err)
			return
		}
		out := make([]map[string]interface{}, 0, len(list))
		for _, d := range list {
			out = append(out, map[string]interface{}{"id": d.ID, "owner_id": d.OwnerID, "name": d.Name, "updated_at": d.UpdatedAt})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/documents", func(c *gin.Context) {
		var req struct {
			OwnerID string   `json:"owner_id"`
			Name    string   `json:"name"`
			Content string   `json:"content"`
			Tags    []string `json:"tags"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d := &document.Document{OwnerID: req.OwnerID, Name: req.Name, Content: req.Content, Tags: req.Tags}
		id, err := svc.Create(c.Request.Context(), d)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "name": d.Name})
	})

	r.GET("/api/documents/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.PATCH("/api/documents/:id", func(c *gin.Context) {
		id := c.Param("id")
		var req struct {
			Name    *string `json:"name,omitempty"`
			Content string  `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Update(c.Request.Context(), id, req.Content, req.Name); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	r.DELETE("/api/documents/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
