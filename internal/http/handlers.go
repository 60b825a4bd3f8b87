package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"treasury/internal/core"
	"treasury/internal/export"
	"treasury/internal/ledger"
)

type statisticsResponse struct {
	core.Statistics
	Available core.Money `json:"available"`
}

type configurationResponse struct {
	Configuration   core.Configuration `json:"configuration"`
	Healthy         bool               `json:"healthy"`
	PercentageTotal int                `json:"percentageTotal"`
}

type recomputeResponse struct {
	Total      int          `json:"total"`
	Changed    []core.Entry `json:"changed"`
	Degenerate bool         `json:"degenerate"`
}

type duplicatesResponse struct {
	Groups    []ledger.DuplicateGroup `json:"groups"`
	Removable int                     `json:"removable"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if _, err := s.treasury.Configuration(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "treasury"})
}

func (s *Server) handleStatistics(c *gin.Context) {
	stats, err := s.treasury.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statisticsResponse{Statistics: stats, Available: stats.Available()})
}

func (s *Server) handleListEntries(c *gin.Context) {
	entries, err := s.treasury.Entries(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleCreateEntry(c *gin.Context) {
	req, err := bindEntryRequest(c)
	if err != nil {
		if isDecodeError(err) {
			badRequest(c, err)
			return
		}
		writeError(c, err)
		return
	}

	written, err := s.treasury.RecordEntry(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entries": written})
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	if err := s.treasury.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetConfiguration(c *gin.Context) {
	cfg, err := s.treasury.Configuration(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConfigurationResponse(cfg))
}

func (s *Server) handleUpdateConfiguration(c *gin.Context) {
	cfg, err := bindConfiguration(c)
	if err != nil {
		if isDecodeError(err) {
			badRequest(c, err)
			return
		}
		writeError(c, err)
		return
	}

	if _, err := s.treasury.UpdateConfiguration(c.Request.Context(), cfg); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConfigurationResponse(cfg))
}

func newConfigurationResponse(cfg core.Configuration) configurationResponse {
	return configurationResponse{
		Configuration:   cfg,
		Healthy:         cfg.Healthy(),
		PercentageTotal: cfg.PercentageTotal(),
	}
}

func (s *Server) handleRecompute(c *gin.Context) {
	res, err := s.treasury.RecomputeAllocations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	changed := res.Changed
	if changed == nil {
		changed = []core.Entry{}
	}
	c.JSON(http.StatusOK, recomputeResponse{
		Total:      len(res.Entries),
		Changed:    changed,
		Degenerate: res.Degenerate,
	})
}

func (s *Server) handleTopUp(c *gin.Context) {
	written, err := s.treasury.TopUpRentReserve(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entries": written})
}

func (s *Server) handleFindDuplicates(c *gin.Context) {
	groups, err := s.treasury.FindDuplicates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if groups == nil {
		groups = []ledger.DuplicateGroup{}
	}
	c.JSON(http.StatusOK, duplicatesResponse{
		Groups:    groups,
		Removable: len(ledger.DuplicateIDs(groups)),
	})
}

func (s *Server) handleRemoveDuplicates(c *gin.Context) {
	removed, err := s.treasury.RemoveDuplicates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleListReports(c *gin.Context) {
	reports, err := s.treasury.Reports(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if reports == nil {
		reports = []core.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) handleSaveReport(c *gin.Context) {
	req, err := bindReportRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	report, err := s.treasury.SaveReport(c.Request.Context(), req.GeneratedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (s *Server) handleExportEntries(c *gin.Context) {
	entries, err := s.treasury.Entries(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteEntries(&buf, entries); err != nil {
		writeError(c, err)
		return
	}
	sendCSV(c, export.EntriesFilename(s.now()), buf.Bytes())
}

func (s *Server) handleExportSummary(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.treasury.Statistics(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	cfg, err := s.treasury.Configuration(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := export.WriteSummary(&buf, stats, cfg, now); err != nil {
		writeError(c, err)
		return
	}
	sendCSV(c, export.SummaryFilename(now), buf.Bytes())
}

func sendCSV(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}
