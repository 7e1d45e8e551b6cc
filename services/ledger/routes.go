package ledger

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
	grp := r.Group("/v1/donations")

	grp.POST("", func(c *gin.Context) {
		var req RecordDonationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		resp, err := s.RecordDonation(c.Request.Context(), &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	})

	// Gateway settlement callback keyed by the payment reference.
	grp.POST("/confirm/:gateway_ref", func(c *gin.Context) {
		row, err := s.ConfirmDonation(c.Request.Context(), c.Param("gateway_ref"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.POST("/:id/cancel", func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			c.Error(err)
			return
		}
		row, err := s.CancelDonation(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.GET("/mine", func(c *gin.Context) {
		rows, err := s.ListMine(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
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

	grp.GET("/campaign/:campaign_id/total", func(c *gin.Context) {
		campaignID, err := pathID(c, "campaign_id")
		if err != nil {
			c.Error(err)
			return
		}
		total, err := s.Total(c.Request.Context(), campaignID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, total)
	})

	grp.GET("/campaign/:campaign_id/top-donors", func(c *gin.Context) {
		campaignID, err := pathID(c, "campaign_id")
		if err != nil {
			c.Error(err)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		rows, err := s.TopDonors(c.Request.Context(), campaignID, limit)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	r.POST("/v1/admin/sweep", func(c *gin.Context) {
		result, err := s.RunSweep(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
}
