package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
	"stockpulse/internal/store"
)

// Error kinds surfaced in the JSON error body.
const (
	kindNotFound     = "not_found"
	kindInvalidRange = "invalid_range"
	kindInternal     = "internal"
)

type errorBody struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func respondError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, errorBody{ErrorKind: kind, Message: message})
}

func (s *Server) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, kindNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("store read failed")
	respondError(c, http.StatusInternalServerError, kindInternal, "storage read failed")
}

// handleHistorical serves the stored price series, optionally bounded by
// from/to calendar days.
func (s *Server) handleHistorical(c *gin.Context) {
	symbol := c.Param("symbol")

	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, http.StatusBadRequest, kindInvalidRange, err.Error())
		return
	}

	series, err := s.store.GetSeries(c.Request.Context(), symbol)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, series.Between(from, to))
}

// handleMetric serves the current snapshot for one symbol.
func (s *Server) handleMetric(c *gin.Context) {
	symbol := c.Param("symbol")

	snap, err := s.store.GetSnapshot(c.Request.Context(), symbol)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// handleAllMetrics serves every current snapshot. An empty mapping is a
// valid response, not an error.
func (s *Server) handleAllMetrics(c *gin.Context) {
	snapshots, err := s.store.AllSnapshots(c.Request.Context())
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshots)
}

// performanceEntry is one row of the cross-symbol ranking.
type performanceEntry struct {
	Symbol         string          `json:"symbol"`
	DailyChangePct decimal.Decimal `json:"daily_change_pct"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// handlePerformance ranks symbols by daily change, best first. Symbols whose
// daily change is undefined are excluded; ties break on symbol lexical order.
func (s *Server) handlePerformance(c *gin.Context) {
	snapshots, err := s.store.AllSnapshots(c.Request.Context())
	if err != nil {
		s.respondStoreError(c, err)
		return
	}

	entries := make([]performanceEntry, 0, len(snapshots))
	for symbol, snap := range snapshots {
		if snap.DailyChangePct == nil {
			continue
		}
		entries = append(entries, performanceEntry{
			Symbol:         symbol,
			DailyChangePct: *snap.DailyChangePct,
			ComputedAt:     snap.ComputedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		cmp := entries[i].DailyChangePct.Cmp(entries[j].DailyChangePct)
		if cmp != 0 {
			return cmp > 0
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	c.JSON(http.StatusOK, entries)
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	var from, to time.Time

	if fromRaw != "" {
		parsed, err := time.ParseInLocation(market.DateLayout, fromRaw, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("malformed from date %q", fromRaw)
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.ParseInLocation(market.DateLayout, toRaw, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("malformed to date %q", toRaw)
		}
		to = parsed
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s", fromRaw, toRaw)
	}
	return from, to, nil
}
