package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vendedor360/backend/config"
	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
)

func TestExitCode(t *testing.T) {
	done := &domain.RunReport{State: domain.StateDone}
	aborted := &domain.RunReport{State: domain.StateAborted}
	logFailed := &domain.RunReport{State: domain.StateDone, LogFailures: []domain.ItemFailure{{OpportunityID: "LIC-1"}}}

	tests := []struct {
		name    string
		reports []*domain.RunReport
		want    int
	}{
		{name: "no reports", reports: nil, want: exitOK},
		{name: "all done", reports: []*domain.RunReport{done, done}, want: exitOK},
		{name: "log failures", reports: []*domain.RunReport{done, logFailed}, want: exitLogFailures},
		{name: "abort wins over log failures", reports: []*domain.RunReport{logFailed, aborted}, want: exitAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.reports))
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Catalog:       config.CatalogConfig{Path: filepath.Join(t.TempDir(), "lista.csv")},
		Bidding:       config.BiddingConfig{RequestTimeout: time.Second},
		SubmissionLog: config.SubmissionLogConfig{Type: "csv", CSVPath: filepath.Join(t.TempDir(), "log.csv")},
		Cache:         config.CacheConfig{Type: "memory", TTL: time.Hour},
		RateLimit:     config.RateLimitConfig{PortalRPS: 1, PortalBurst: 1},
	}
}

func TestRun_NoPortalEnabled(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), testConfig(t), nil, true, logger.Discard(), &out)

	assert.Equal(t, exitAborted, code)
	assert.Empty(t, out.String())
}

func TestRun_InitFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.SubmissionLog.Type = "excel"

	assert.Equal(t, exitAborted, run(context.Background(), cfg, nil, false, logger.Discard(), &bytes.Buffer{}))
}

func TestRun_MissingCatalogAbortsPortal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Portals.Wherex = config.PortalConfig{Enabled: true, Username: "u", Password: "p", BaseURL: "http://127.0.0.1:9"}

	var out bytes.Buffer
	code := run(context.Background(), cfg, []string{"wherex"}, true, logger.Discard(), &out)

	assert.Equal(t, exitAborted, code)
	assert.Contains(t, out.String(), `"state": "aborted"`)
}

func TestRun_UnknownPortal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Portals.Wherex = config.PortalConfig{Enabled: true, Username: "u", Password: "p"}

	assert.Equal(t, exitAborted, run(context.Background(), cfg, []string{"ebay"}, false, logger.Discard(), &bytes.Buffer{}))
}
