package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/airquality"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/dataset"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/opendata"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/snapshot"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/view"
)

const (
	maxTopN              = 1000
	defaultDistrictLimit = 30
	maxDistrictLimit     = 100
)

// dataContext bounds a handler that may trigger a live fetch; the extra
// headroom covers normalization and the snapshot write.
func (s *Server) dataContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout+5*time.Second)
}

// parseFilter reads the row-selection parameters shared by the view
// endpoints. A false return means the 400 has already been written.
func (s *Server) parseFilter(c *gin.Context) (view.Filter, bool) {
	f := view.Filter{District: strings.TrimSpace(c.Query("district"))}

	if v := c.Query("over_threshold"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid over_threshold parameter"})
			return f, false
		}
		f.OverThreshold = b
	}
	return f, true
}

// parseOptions reads the display-shaping parameters shared by the view
// endpoints.
func (s *Server) parseOptions(c *gin.Context) (view.Options, bool) {
	opts := view.Options{
		Scale:       s.cfg.Scale,
		ScaleRadius: true,
		TopN:        s.cfg.DefaultTopN,
	}

	if v := c.Query("bands"); v != "" {
		scale, err := airquality.ParseScale(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bands parameter (want 4 or 6)"})
			return opts, false
		}
		opts.Scale = scale
	}

	if v := c.Query("scale_radius"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scale_radius parameter"})
			return opts, false
		}
		opts.ScaleRadius = b
	}

	if v := c.Query("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxTopN {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top_n"})
			return opts, false
		}
		opts.TopN = n
	}

	return opts, true
}

// currentDataset loads the working dataset, writing the error response
// itself when the pipeline fails.
func (s *Server) currentDataset(c *gin.Context) (*dataset.Dataset, bool) {
	ctx, cancel := s.dataContext(c)
	defer cancel()

	ds, err := s.data.Current(ctx)
	if err != nil {
		s.writeDataError(c, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) writeDataError(c *gin.Context, err error) {
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no dataset available yet, run a fetch first"})
		return
	}

	var resErr *opendata.ResolutionError
	if errors.As(err, &resErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "attempts": resErr.Attempts})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// datasetMeta is the provenance block attached to every data response.
func datasetMeta(ds *dataset.Dataset) gin.H {
	meta := gin.H{
		"source_url":    ds.Meta.SourceURL,
		"fetched_at":    ds.Meta.FetchedAt,
		"total":         len(ds.Readings),
		"dropped":       ds.Meta.DroppedCount,
		"from_snapshot": ds.Meta.FromSnapshot,
	}
	if ds.Meta.Stale {
		meta["stale"] = true
		meta["stale_reason"] = ds.Meta.StaleReason
	}
	return meta
}

// handleV1Readings returns display rows for the current view, sorted by
// PM2.5 descending
// GET /api/v1/readings?district=&over_threshold=&top_n=&scale_radius=&bands=
func (s *Server) handleV1Readings(c *gin.Context) {
	filter, ok := s.parseFilter(c)
	if !ok {
		return
	}
	opts, ok := s.parseOptions(c)
	if !ok {
		return
	}

	ds, ok := s.currentDataset(c)
	if !ok {
		return
	}

	rows := view.BuildTable(filter.Apply(ds.Readings), opts)

	meta := datasetMeta(ds)
	meta["count"] = len(rows)
	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": meta})
}

// handleV1Districts returns per-district PM2.5 aggregates, worst first
// GET /api/v1/districts?district=&over_threshold=&bands=&limit=
func (s *Server) handleV1Districts(c *gin.Context) {
	filter, ok := s.parseFilter(c)
	if !ok {
		return
	}
	opts, ok := s.parseOptions(c)
	if !ok {
		return
	}

	limit := defaultDistrictLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDistrictLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	ds, ok := s.currentDataset(c)
	if !ok {
		return
	}

	aggs := view.AggregateDistricts(filter.Apply(ds.Readings), opts.Scale)
	if len(aggs) > limit {
		aggs = aggs[:limit]
	}

	meta := datasetMeta(ds)
	meta["count"] = len(aggs)
	c.JSON(http.StatusOK, gin.H{"data": aggs, "meta": meta})
}

// handleV1Summary returns the KPI block for the current view
// GET /api/v1/summary?district=&over_threshold=&detailed=&bands=
func (s *Server) handleV1Summary(c *gin.Context) {
	filter, ok := s.parseFilter(c)
	if !ok {
		return
	}
	opts, ok := s.parseOptions(c)
	if !ok {
		return
	}

	detailed := false
	if v := c.Query("detailed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detailed parameter"})
			return
		}
		detailed = b
	}

	ds, ok := s.currentDataset(c)
	if !ok {
		return
	}

	summary := view.BuildSummary(filter.Apply(ds.Readings), ds.Meta, opts.Scale, detailed)

	c.JSON(http.StatusOK, gin.H{"data": summary, "meta": datasetMeta(ds)})
}

// handleV1Viewport returns the camera fitting the current view's points
// GET /api/v1/viewport?district=&over_threshold=
func (s *Server) handleV1Viewport(c *gin.Context) {
	filter, ok := s.parseFilter(c)
	if !ok {
		return
	}

	ds, ok := s.currentDataset(c)
	if !ok {
		return
	}

	meta := datasetMeta(ds)

	vp, fitted := view.ViewportFor(filter.Apply(ds.Readings))
	if !fitted {
		meta["message"] = "no points to fit"
		c.JSON(http.StatusOK, gin.H{"data": nil, "meta": meta})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": vp, "meta": meta})
}

// handleV1Levels returns the severity band legend
// GET /api/v1/levels?bands=4|6
func (s *Server) handleV1Levels(c *gin.Context) {
	scale := s.cfg.Scale
	if v := c.Query("bands"); v != "" {
		parsed, err := airquality.ParseScale(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bands parameter (want 4 or 6)"})
			return
		}
		scale = parsed
	}

	levels := scale.Levels()
	c.JSON(http.StatusOK, gin.H{
		"data": levels,
		"meta": gin.H{
			"count":          len(levels),
			"over_threshold": airquality.OverThreshold,
		},
	})
}

// handleV1Refresh forces a live fetch, bypassing the result cache
// POST /api/v1/refresh
func (s *Server) handleV1Refresh(c *gin.Context) {
	ctx, cancel := s.dataContext(c)
	defer cancel()

	ds, err := s.data.Refresh(ctx)
	if err != nil {
		s.writeDataError(c, err)
		return
	}

	meta := datasetMeta(ds)
	meta["count"] = len(ds.Readings)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "refreshed"}, "meta": meta})
}

// handleV1CacheClear drops every cached dataset
// POST /api/v1/cache/clear
func (s *Server) handleV1CacheClear(c *gin.Context) {
	s.data.ClearCache()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "cache cleared"}})
}
