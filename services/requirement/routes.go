package requirement

import (
	"fmt"
	"net/http"
	"strconv"

	"crowdfund-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errutil.BadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

func RegisterRoutes(r *gin.Engine, s *Service) {
	grp := r.Group("/v1/requirements")

	grp.GET("/category/:category_id", func(c *gin.Context) {
		categoryID, err := paramID(c, "category_id")
		if err != nil {
			c.Error(err)
			return
		}
		rows, err := s.ListByCategory(c.Request.Context(), categoryID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.POST("", func(c *gin.Context) {
		var req CreateRequirementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.CreateRequirement(c.Request.Context(), &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, row)
	})

	grp.PUT("/:id", func(c *gin.Context) {
		id, err := paramID(c, "id")
		if err != nil {
			c.Error(err)
			return
		}
		var req CreateRequirementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		if err := s.UpdateRequirement(c.Request.Context(), id, &req); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	})

	grp.DELETE("/:id", func(c *gin.Context) {
		id, err := paramID(c, "id")
		if err != nil {
			c.Error(err)
			return
		}
		if err := s.DeleteRequirement(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	grp.GET("/campaign/:campaign_id", func(c *gin.Context) {
		campaignID, err := paramID(c, "campaign_id")
		if err != nil {
			c.Error(err)
			return
		}
		rows, err := s.ListResponses(c.Request.Context(), campaignID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.POST("/campaign/:campaign_id", func(c *gin.Context) {
		campaignID, err := paramID(c, "campaign_id")
		if err != nil {
			c.Error(err)
			return
		}
		var reqs []SaveResponseRequest
		if err := c.ShouldBindJSON(&reqs); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		saved, err := s.SaveResponses(c.Request.Context(), campaignID, reqs)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": saved})
	})
}
