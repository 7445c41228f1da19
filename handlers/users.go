package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gogotex/mongomodel/internal/users"
	"github.com/gogotex/mongomodel/pkg/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserHandler serves the users resource.
type UserHandler struct {
	svc *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// RegisterUserRoutes registers the users CRUD endpoints and the role summary.
func RegisterUserRoutes(r gin.IRouter, h *UserHandler) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := users.RegisterValidations(v); err != nil {
			panic(err)
		}
	}
	r.GET("/api/users", h.List)
	r.POST("/api/users", h.Create)
	r.GET("/api/users/:id", h.Get)
	r.PATCH("/api/users/:id", h.Update)
	r.DELETE("/api/users/:id", h.Delete)
	r.GET("/api/roles", h.Roles)
}

// List accepts ?page=&page_size=&role= and returns one page of users.
func (h *UserHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	size, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	out, err := h.svc.List(c.Request.Context(), c.Query("role"), page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Create accepts { username, email, name, roles }.
func (h *UserHandler) Create(c *gin.Context) {
	var req users.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, model.Invalid("create", "User", "%v", err))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Update applies the fields present in the body.
func (h *UserHandler) Update(c *gin.Context) {
	var req users.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, model.Invalid("update", "User", "%v", err))
		return
	}
	u, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Roles returns how many users hold each role.
func (h *UserHandler) Roles(c *gin.Context) {
	counts, err := h.svc.RoleCounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func queryInt(c *gin.Context, name string, def int64) (int64, error) {
	s := c.Query(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindDuplicateKey:
		return http.StatusConflict
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindConnectionFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	body := gin.H{"error": model.KindOf(err).String()}
	if status != http.StatusInternalServerError {
		body["message"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
