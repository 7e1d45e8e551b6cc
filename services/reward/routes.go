package reward

import (
	"net/http"
	"strconv"

	"crowdfund-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errutil.BadRequest("invalid "+name, err)
	}
	return id, nil
}

func RegisterRoutes(r *gin.Engine, s *Service) {
	grp := r.Group("/v1/rewards")

	grp.POST("", func(c *gin.Context) {
		var req CreateRewardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.CreateReward(c.Request.Context(), &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, row)
	})

	grp.PUT("/:id", func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			c.Error(err)
			return
		}
		var req UpdateRewardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.UpdateReward(c.Request.Context(), id, &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.DELETE("/:id", func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			c.Error(err)
			return
		}
		if err := s.DeleteReward(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	grp.GET("/campaign/:campaign_id", func(c *gin.Context) {
		campaignID, err := pathID(c, "campaign_id")
		if err != nil {
			c.Error(err)
			return
		}
		rows, err := s.ListByCampaign(c.Request.Context(), campaignID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.GET("/:id/eligibility", func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			c.Error(err)
			return
		}
		row, err := s.CheckEligibility(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.POST("/claim", func(c *gin.Context) {
		var req ClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.ClaimReward(c.Request.Context(), &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, row)
	})

	grp.GET("/claims/mine", func(c *gin.Context) {
		rows, err := s.ListMyClaims(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.GET("/claims/campaign/:campaign_id", func(c *gin.Context) {
		campaignID, err := pathID(c, "campaign_id")
		if err != nil {
			c.Error(err)
			return
		}
		rows, err := s.ListCampaignClaims(c.Request.Context(), campaignID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})
}
