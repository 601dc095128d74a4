package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/store"
)

// CreateDeal returns a handler for POST /api/v1/deals.
// With ?auto_rank=true the new deal is scored immediately; a ranking
// failure is logged and the deal is still created.
func CreateDeal(st *store.Store, rk *ranker.Ranker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		deal := dealFromRequest(&req)
		if err := st.Create(c.Request.Context(), deal); err != nil {
			internalError(c, err)
			return
		}

		if c.Query("auto_rank") == "true" {
			res := rk.Score(c.Request.Context(), rankerInput(deal))
			if err := st.SaveRanking(c.Request.Context(), deal.ID, res.ScoreResult, res.Estimated); err != nil {
				slog.Error("auto-rank save failed", "deal_id", deal.ID, "error", err)
			} else if ranked, err := st.Get(c.Request.Context(), deal.ID); err == nil {
				deal = ranked
			}
		}

		c.JSON(http.StatusCreated, deal)
	}
}

// ListDeals returns a handler for GET /api/v1/deals.
// Accepts optional ?restaurant= and ?limit= (max 100) filters.
func ListDeals(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 100 {
				badRequest(c, "limit must be an integer between 1 and 100")
				return
			}
			limit = parsed
		}

		deals, err := st.List(c.Request.Context(), c.Query("restaurant"), limit)
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deals": deals, "count": len(deals)})
	}
}

// GetDeal returns a handler for GET /api/v1/deals/:id.
func GetDeal(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := dealID(c)
		if !ok {
			return
		}
		deal, err := st.Get(c.Request.Context(), id)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, deal)
	}
}

// UpdateDeal returns a handler for PUT /api/v1/deals/:id.
// A successful update clears the deal's ranking.
func UpdateDeal(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := dealID(c)
		if !ok {
			return
		}
		var req models.DealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		deal := dealFromRequest(&req)
		deal.ID = id
		if err := st.Update(c.Request.Context(), deal); err != nil {
			storeError(c, err)
			return
		}

		updated, err := st.Get(c.Request.Context(), id)
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteDeal returns a handler for DELETE /api/v1/deals/:id.
func DeleteDeal(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := dealID(c)
		if !ok {
			return
		}
		if err := st.Delete(c.Request.Context(), id); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

// TopDeals returns a handler for GET /api/v1/deals/top.
// Accepts ?limit= (default 10, max 50) and ?restaurant=.
func TopDeals(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 10
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 50 {
				badRequest(c, "limit must be an integer between 1 and 50")
				return
			}
			limit = parsed
		}

		deals, err := st.Top(c.Request.Context(), c.Query("restaurant"), limit)
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deals": deals, "count": len(deals)})
	}
}

// Restaurants returns a handler for GET /api/v1/restaurants.
func Restaurants(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := st.Restaurants(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"restaurants": names, "count": len(names)})
	}
}

// Categories returns a handler for GET /api/v1/categories.
func Categories(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := st.Categories(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": names, "count": len(names)})
	}
}

func dealFromRequest(req *models.DealRequest) *models.Deal {
	return &models.Deal{
		Restaurant:   req.Restaurant,
		ItemName:     req.ItemName,
		Price:        req.Price,
		Description:  req.Description,
		PortionSize:  req.PortionSize,
		DealType:     req.DealType,
		SourceURL:    req.SourceURL,
		Calories:     req.Calories,
		ProteinGrams: req.ProteinGrams,
	}
}

// dealID parses the :id path parameter, responding 400 on garbage.
func dealID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg},
	})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
	})
}

// storeError maps store errors to HTTP statuses (NOT_FOUND → 404).
func storeError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if errors.As(err, &scrapeErr) && scrapeErr.Code == models.ErrCodeNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": scrapeErr.ToDetail()})
		return
	}
	internalError(c, err)
}
