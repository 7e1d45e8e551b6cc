package refdata

import (
	"net/http"
	"strconv"

	"crowdfund-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, s *Service) {
	grp := r.Group("/v1/refdata")

	grp.GET("/workflow-states", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": WorkflowStates})
	})
	grp.GET("/campaign-states", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": CampaignStates})
	})
	grp.GET("/donation-states", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": DonationStates})
	})
	grp.GET("/observation-actions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": ObservationActions})
	})
	grp.GET("/roles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": Roles})
	})

	grp.GET("/categories", func(c *gin.Context) {
		rows, err := s.ListCategories(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.GET("/categories/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.Error(errutil.BadRequest("invalid category id", err))
			return
		}
		row, err := s.GetCategory(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.GET("/countries", func(c *gin.Context) {
		rows, err := s.ListCountries(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.GET("/payment-methods", func(c *gin.Context) {
		rows, err := s.ListPaymentMethods(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})
}
