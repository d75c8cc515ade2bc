package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"trade-companion/backend/internal/catalog"
	"trade-companion/backend/internal/item"
	"trade-companion/backend/internal/store"
	"trade-companion/backend/internal/trade"
	"trade-companion/backend/internal/util"
)

// DefaultRequestPause spaces outgoing searches even when the limiter has
// capacity. The upstream asks automated tools to avoid bursts.
const DefaultRequestPause = time.Second

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("item text is required"))
		return
	}

	league := strings.TrimSpace(req.League)
	if league == "" {
		league = s.defaultLeague
	}

	timer := util.StartTimer()
	ctx := c.Request.Context()

	parsed := item.Parse(req.Text)

	snapshot, err := s.catalog.Fetch(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrCacheUnavailable) {
			s.renderError(c, http.StatusServiceUnavailable, err)
		} else {
			s.renderError(c, http.StatusBadGateway, fmt.Errorf("load stat catalog: %w", err))
		}
		return
	}
	s.persistSnapshot(snapshot)

	payload, err := trade.BuildQuery(parsed, s.resolver, trade.QueryOptions{
		IncludeItemLevel: req.IncludeItemLevel,
	})
	if err != nil {
		if errors.Is(err, trade.ErrUnsupportedItemClass) || errors.Is(err, trade.ErrNoValidStats) {
			s.renderError(c, http.StatusBadRequest, err)
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	if err := s.pause(ctx); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("request cancelled: %w", err))
		return
	}

	if decision := s.limiter.CheckAndReserve(); !decision.Allowed {
		retryAfter := int(decision.RetryAfter.Seconds() + 0.5)
		logrus.WithField("retry_after", retryAfter).Info("search denied by local rate limiter")
		s.broadcastRateLimit("local limit reached")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:      "rate limit reached, retry later",
			RetryAfter: retryAfter,
			RateLimit:  s.limiter.State(),
		})
		return
	}

	result, headers, err := s.tradeClient.Search(ctx, league, payload)
	if headers != nil {
		s.limiter.ReconcileFromHeaders(headers)
	}
	if err != nil {
		s.renderSearchFailure(c, league, parsed, timer, err)
		s.broadcastRateLimit("")
		return
	}
	s.broadcastRateLimit("")

	record := &store.SearchRecord{
		League:      league,
		ItemClass:   parsed.ItemClass,
		Rarity:      parsed.Rarity,
		ItemName:    parsed.Name,
		StatCount:   len(parsed.Stats),
		UpstreamID:  result.ID,
		ResultTotal: result.Total,
		Status:      "ok",
		LatencyMs:   timer.ElapsedMs(),
	}
	if err := s.db.SaveSearch(record); err != nil {
		logrus.WithError(err).Warn("persist search record")
	}

	logrus.WithFields(logrus.Fields{
		"league":     league,
		"item_class": parsed.ItemClass,
		"total":      result.Total,
		"elapsed_ms": record.LatencyMs,
	}).Info("search completed")

	c.JSON(http.StatusOK, SearchResponse{
		ID:        result.ID,
		Total:     result.Total,
		Listings:  result.Result,
		WebURL:    searchWebURL(s.tradeClient.BaseURL(), league, result.ID),
		League:    league,
		Item:      ParsedItemFromModel(parsed),
		RateLimit: s.limiter.State(),
		LatencyMs: record.LatencyMs,
	})
}

// renderSearchFailure maps upstream failures onto response statuses and
// records the attempt.
func (s *Server) renderSearchFailure(c *gin.Context, league string, parsed item.ParsedItem, timer util.Timer, err error) {
	status := http.StatusBadGateway
	recordStatus := "upstream_error"
	response := ErrorResponse{Error: err.Error()}

	var statusErr *trade.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.RateLimited():
		status = http.StatusTooManyRequests
		recordStatus = "rate_limited"
		retryAfter := statusErr.RetryAfter
		if retryAfter <= 0 {
			retryAfter = 60
		}
		s.limiter.ApplyRestriction(retryAfter)
		response.RetryAfter = retryAfter
		response.RateLimit = s.limiter.State()
	case errors.As(err, &statusErr) && statusErr.Forbidden():
		status = http.StatusForbidden
		recordStatus = "forbidden"
	case errors.Is(err, trade.ErrConnection):
		recordStatus = "unreachable"
	case errors.Is(err, trade.ErrMalformedResponse):
		recordStatus = "malformed_response"
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"league": league,
		"status": recordStatus,
	}).Warn("search failed")

	record := &store.SearchRecord{
		League:    league,
		ItemClass: parsed.ItemClass,
		Rarity:    parsed.Rarity,
		ItemName:  parsed.Name,
		StatCount: len(parsed.Stats),
		Status:    recordStatus,
		LatencyMs: timer.ElapsedMs(),
	}
	if saveErr := s.db.SaveSearch(record); saveErr != nil {
		logrus.WithError(saveErr).Warn("persist failed search record")
	}

	c.JSON(status, response)
}

// pause waits the configured spacing before an outgoing request, honouring
// cancellation.
func (s *Server) pause(ctx context.Context) error {
	if s.requestPause <= 0 {
		return nil
	}
	timer := time.NewTimer(s.requestPause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func searchWebURL(baseURL, league, id string) string {
	return baseURL + "/trade/search/" + url.PathEscape(league) + "/" + url.PathEscape(id)
}
