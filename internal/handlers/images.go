package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autovault/internal/services"
)

// ListImages handles GET /api/images?category=&search=&type=&sort=.
func (h *Handler) ListImages(c *gin.Context) {
	var q services.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	filter, err := services.ParseFilter(q)
	if err != nil {
		writeError(c, err)
		return
	}

	images, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h *Handler) GetImage(c *gin.Context) {
	image, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

func (h *Handler) CreateImage(c *gin.Context) {
	var in services.ImageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	image, err := h.catalog.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, image)
}

func (h *Handler) UpdateImage(c *gin.Context) {
	var in services.ImageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	image, err := h.catalog.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

func (h *Handler) DeleteImage(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image removed"})
}
