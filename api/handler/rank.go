package handler

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/store"
	"github.com/dealscout/dealscout/webhook"
)

// RankDeal returns a handler for POST /api/v1/deals/:id/rank.
// Scoring never fails: missing nutrition is estimated, and estimation
// failure falls back to defaults. The response says which path was taken.
func RankDeal(st *store.Store, rk *ranker.Ranker) gin.HandlerFunc {
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

		result := rk.Score(c.Request.Context(), rankerInput(deal))
		if err := st.SaveRanking(c.Request.Context(), deal.ID, result.ScoreResult, result.Estimated); err != nil {
			storeError(c, err)
			return
		}

		c.JSON(http.StatusOK, rankingResponse(deal, result))
	}
}

// RankAll returns a handler for POST /api/v1/deals/rank-all.
// Deals are ranked in bounded concurrent batches; per-deal persistence
// failures become skip annotations, never a failed run. A configured
// webhook receives a rank_all.completed event when the run finishes.
func RankAll(st *store.Store, rk *ranker.Ranker, hook *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RankAllRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			badRequest(c, err.Error())
			return
		}
		req.Defaults()

		deals, err := st.Rankable(c.Request.Context(), req.Force)
		if err != nil {
			internalError(c, err)
			return
		}

		start := time.Now()
		results := make([]models.RankingResponse, len(deals))

		// Process in batches: at most BatchSize deals score concurrently,
		// and each batch completes before the next starts.
		for offset := 0; offset < len(deals); offset += req.BatchSize {
			end := offset + req.BatchSize
			if end > len(deals) {
				end = len(deals)
			}

			var wg sync.WaitGroup
			for i := offset; i < end; i++ {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					deal := deals[idx]
					result := rk.Score(c.Request.Context(), rankerInput(&deal))
					resp := rankingResponse(&deal, result)
					if err := st.SaveRanking(c.Request.Context(), deal.ID, result.ScoreResult, result.Estimated); err != nil {
						resp.SkipReason = "failed to persist ranking: " + err.Error()
					}
					results[idx] = resp
				}(i)
			}
			wg.Wait()
		}

		ranked, skipped := 0, 0
		for _, r := range results {
			if r.SkipReason == "" {
				ranked++
			} else {
				skipped++
			}
		}

		resp := models.RankAllResponse{
			Success: true,
			Ranked:  ranked,
			Skipped: skipped,
			Results: results,
			Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		}

		slog.Info("rank-all finished",
			"ranked", ranked,
			"skipped", skipped,
			"total", len(deals),
			"force", req.Force,
		)

		hook.SendAsync(&webhook.Event{
			Type:      webhook.EventRankAllCompleted,
			RunID:     "rank-all-" + randomID(),
			Timestamp: time.Now().Unix(),
			Data: gin.H{
				"ranked":  ranked,
				"skipped": skipped,
				"total":   len(deals),
			},
		})

		c.JSON(http.StatusOK, resp)
	}
}

func rankerInput(deal *models.Deal) ranker.Input {
	return ranker.Input{
		ItemName:     deal.ItemName,
		Restaurant:   deal.Restaurant,
		Price:        deal.Price,
		Description:  deal.Description,
		PortionSize:  deal.PortionSize,
		Calories:     deal.Calories,
		ProteinGrams: deal.ProteinGrams,
	}
}

func rankingResponse(deal *models.Deal, result ranker.Result) models.RankingResponse {
	return models.RankingResponse{
		DealID:       deal.ID,
		ItemName:     deal.ItemName,
		Restaurant:   deal.Restaurant,
		ValueScore:   result.ValueScore,
		SatietyScore: result.SatietyScore,
		Calories:     result.Calories,
		ProteinGrams: result.ProteinGrams,
		Estimated:    result.Estimated,
		UsedDefaults: result.UsedDefaults,
	}
}

// randomID generates a short random hex string for run IDs.
func randomID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "fallback"
	}
	return hex.EncodeToString(b)
}
