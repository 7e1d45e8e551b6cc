package campaign

import (
	"net/http"
	"strconv"

	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/services/refdata"

	"github.com/gin-gonic/gin"
)

func campaignID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errutil.BadRequest("invalid campaign id", err)
	}
	return id, nil
}

func RegisterRoutes(r *gin.Engine, s *Service) {
	pub := r.Group("/v1/public/campaigns")

	pub.GET("", func(c *gin.Context) {
		params := ListPublicParams{Search: c.Query("search")}
		if raw := c.Query("category_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.Error(errutil.BadRequest("invalid category_id", err))
				return
			}
			params.CategoryID = &id
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				c.Error(errutil.BadRequest("invalid limit", err))
				return
			}
			params.Limit = limit
		}
		rows, err := s.ListPublic(c.Request.Context(), params)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	pub.GET("/featured", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "6"))
		rows, err := s.ListFeatured(c.Request.Context(), limit)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	pub.GET("/:slug", func(c *gin.Context) {
		row, err := s.GetPublicDetail(c.Request.Context(), c.Param("slug"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp := r.Group("/v1/campaigns")

	grp.POST("", func(c *gin.Context) {
		var req CreateCampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.Create(c.Request.Context(), &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, row)
	})

	grp.GET("/mine", func(c *gin.Context) {
		rows, err := s.ListMine(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.GET("/favorites", func(c *gin.Context) {
		rows, err := s.ListFavorites(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	grp.GET("/:id", func(c *gin.Context) {
		id, err := campaignID(c)
		if err != nil {
			c.Error(err)
			return
		}
		row, err := s.Get(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.PUT("/:id", func(c *gin.Context) {
		id, err := campaignID(c)
		if err != nil {
			c.Error(err)
			return
		}
		var req UpdateCampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
		row, err := s.Update(c.Request.Context(), id, &req)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, row)
	})

	grp.DELETE("/:id", func(c *gin.Context) {
		id, err := campaignID(c)
		if err != nil {
			c.Error(err)
			return
		}
		if err := s.Delete(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	transitions := map[string]func(c *gin.Context, id int64) error{
		"submit-for-review": func(c *gin.Context, id int64) error { return s.SubmitForReview(c.Request.Context(), id) },
		"start":             func(c *gin.Context, id int64) error { return s.Start(c.Request.Context(), id) },
		"pause":             func(c *gin.Context, id int64) error { return s.Pause(c.Request.Context(), id) },
		"finish":            func(c *gin.Context, id int64) error { return s.Finish(c.Request.Context(), id) },
	}
	for name, fn := range transitions {
		apply := fn
		grp.POST("/:id/"+name, func(c *gin.Context) {
			id, err := campaignID(c)
			if err != nil {
				c.Error(err)
				return
			}
			if err := apply(c, id); err != nil {
				c.Error(err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}

	grp.POST("/:id/favorite", func(c *gin.Context) {
		id, err := campaignID(c)
		if err != nil {
			c.Error(err)
			return
		}
		if err := s.AddFavorite(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	grp.DELETE("/:id/favorite", func(c *gin.Context) {
		id, err := campaignID(c)
		if err != nil {
			c.Error(err)
			return
		}
		if err := s.RemoveFavorite(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	adm := r.Group("/v1/admin/campaigns")

	adm.GET("", func(c *gin.Context) {
		rows, err := s.ListAll(c.Request.Context(), refdata.WorkflowState(c.Query("workflow_state")))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})

	reviews := map[string]func(ctx *gin.Context, id int64, text string) error{
		"approve": func(c *gin.Context, id int64, text string) error { return s.Approve(c.Request.Context(), id, text) },
		"observe": func(c *gin.Context, id int64, text string) error { return s.Observe(c.Request.Context(), id, text) },
		"reject":  func(c *gin.Context, id int64, text string) error { return s.Reject(c.Request.Context(), id, text) },
	}
	for name, fn := range reviews {
		apply := fn
		adm.POST("/:id/"+name, func(c *gin.Context) {
			id, err := campaignID(c)
			if err != nil {
				c.Error(err)
				return
			}
			var req ReviewActionRequest
			if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
				c.Error(errutil.BadRequest("invalid request body", err))
				return
			}
			if err := apply(c, id, req.Text); err != nil {
				c.Error(err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}

	adm.GET("/:id/observations", func(c *gin.Context) {
		id, err := campaignID(c)
		if err != nil {
			c.Error(err)
			return
		}
		rows, err := s.ListObservations(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	})
}
