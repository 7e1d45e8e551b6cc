package person

import (
	"net/http"
	"strconv"

	"crowdfund-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, s *Service) {
	grp := r.Group("/v1/persons")

	grp.GET("/me", func(c *gin.Context) {
		row, err := s.GetProfile(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.PATCH("/me", func(c *gin.Context) {
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.UpdateProfile(c.Request.Context(), &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.Error(errutil.BadRequest("invalid person id", err))
			return
		}
		row, err := s.GetPublic(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})
}

