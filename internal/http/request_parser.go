package http

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"treasury/internal/core"
	"treasury/internal/ledger"
)

// DefaultReportAuthor is recorded on reports saved through the API without
// an explicit author.
const DefaultReportAuthor = "api"

type reportRequest struct {
	GeneratedBy string `json:"generatedBy"`
}

// bindEntryRequest decodes a new entry and strips control characters from
// its free-text fields.
func bindEntryRequest(c *gin.Context) (ledger.EntryRequest, error) {
	var req ledger.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ledger.EntryRequest{}, err
	}
	req.Description = sanitizeInput(req.Description)
	req.InvoiceRef = sanitizeInput(req.InvoiceRef)
	return req, nil
}

func bindConfiguration(c *gin.Context) (core.Configuration, error) {
	var cfg core.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		return core.Configuration{}, err
	}
	cfg.OrganizationName = sanitizeInput(cfg.OrganizationName)
	return cfg, nil
}

// bindReportRequest accepts an empty body.
func bindReportRequest(c *gin.Context) (reportRequest, error) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return reportRequest{}, err
	}
	req.GeneratedBy = sanitizeInput(req.GeneratedBy)
	if req.GeneratedBy == "" {
		req.GeneratedBy = DefaultReportAuthor
	}
	return req, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// isDecodeError tells a malformed body apart from a rejected value.
func isDecodeError(err error) bool {
	return !errors.Is(err, core.ErrInvalidAmount) && !core.IsValidation(err)
}
