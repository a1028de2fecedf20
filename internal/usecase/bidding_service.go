package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
)

// Submission outcomes reported to RunMetrics
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeLogFailed = "log_failed"
)

// BiddingConfig holds configuration for one portal's bidding session
type BiddingConfig struct {
	Portal      string
	Credentials domain.Credentials
	StatusLabel string
	// SettleDelay is waited after every successful submission
	SettleDelay time.Duration
	DedupTTL    time.Duration
	// DatasheetDir is searched for <code>.pdf when a product declares no datasheet
	DatasheetDir string
}

// BiddingService drives one bidding session against one portal:
// login, scan opportunities, match, submit, record.
type BiddingService struct {
	adapter       domain.SiteAdapter
	submissionLog domain.SubmissionLog
	ledger        domain.SubmissionLedger
	matcher       *MatchingService
	loader        domain.CatalogLoader
	metrics       domain.RunMetrics
	log           *logger.Logger
	config        BiddingConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	stat  func(path string) (os.FileInfo, error)
}

// BiddingOption customizes a BiddingService
type BiddingOption func(*BiddingService)

// WithCatalogLoader sets the loader used by RunSession
func WithCatalogLoader(loader domain.CatalogLoader) BiddingOption {
	return func(s *BiddingService) { s.loader = loader }
}

// WithRunMetrics sets the metrics sink
func WithRunMetrics(metrics domain.RunMetrics) BiddingOption {
	return func(s *BiddingService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) BiddingOption {
	return func(s *BiddingService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewBiddingService creates a bidding service with dependencies.
// A nil ledger disables duplicate detection.
func NewBiddingService(
	adapter domain.SiteAdapter,
	submissionLog domain.SubmissionLog,
	ledger domain.SubmissionLedger,
	matcher *MatchingService,
	config BiddingConfig,
	opts ...BiddingOption,
) *BiddingService {
	if config.Portal == "" {
		config.Portal = adapter.Name()
	}
	if config.DedupTTL == 0 {
		config.DedupTTL = 720 * time.Hour // Default 30 days
	}
	if ledger == nil {
		ledger = nopLedger{}
	}
	if matcher == nil {
		matcher = NewMatchingService(MatchConfig{}, nil)
	}

	s := &BiddingService{
		adapter:       adapter,
		submissionLog: submissionLog,
		ledger:        ledger,
		matcher:       matcher,
		metrics:       nopMetrics{},
		log:           logger.Discard(),
		config:        config,
		now:           time.Now,
		sleep:         sleepContext,
		stat:          os.Stat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Portal returns the portal this service bids on
func (s *BiddingService) Portal() string {
	return s.config.Portal
}

// RunSession loads the price list and runs a session with it.
// A catalog that cannot be loaded aborts the run before any portal traffic.
func (s *BiddingService) RunSession(ctx context.Context, catalogPath string) (*domain.RunReport, error) {
	if s.loader == nil {
		return s.abortBeforeStart(fmt.Errorf("%w: no catalog loader configured", domain.ErrInvalidRequest))
	}
	catalog, err := s.loader.Load(catalogPath)
	if err != nil {
		return s.abortBeforeStart(fmt.Errorf("load catalog: %w", err))
	}
	return s.Run(ctx, catalog)
}

// Run executes one session with an already loaded catalog.
// Per-item failures are recorded in the report and do not fail the run;
// an error is returned only when the run is aborted.
func (s *BiddingService) Run(ctx context.Context, catalog *domain.Catalog) (*domain.RunReport, error) {
	report := s.newReport()
	log := s.log.WithRun(report.RunID, report.Portal)
	log.Info("run_started", "catalog", catalog.Source, "products", catalog.Len())

	defer func() {
		if err := s.adapter.Close(); err != nil {
			log.Warn("adapter_close_failed", "error", err.Error())
		}
	}()

	err := s.run(ctx, catalog, report, log)
	s.finish(report, err, log)
	return report, err
}

func (s *BiddingService) run(ctx context.Context, catalog *domain.Catalog, report *domain.RunReport, log *logger.Logger) error {
	if err := s.adapter.Login(ctx, s.config.Credentials); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return wrapSentinel(domain.ErrAuthenticationFailure, err)
	}
	report.Transition(domain.StateAuthenticated)
	report.Transition(domain.StateScanning)

	for opp, err := range s.adapter.ListOpportunities(ctx) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return wrapSentinel(domain.ErrListingFailure, err)
		}

		report.Scanned++
		s.metrics.OpportunityScanned(report.Portal)

		if err := s.processOpportunity(ctx, opp, catalog, report, log); err != nil {
			return err
		}
		report.Transition(domain.StateScanning)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// processOpportunity submits offers for the matched products of one opportunity.
// Only context cancellation is returned; everything else is recorded on the report.
func (s *BiddingService) processOpportunity(
	ctx context.Context,
	opp domain.Opportunity,
	catalog *domain.Catalog,
	report *domain.RunReport,
	log *logger.Logger,
) error {
	products := s.matcher.MatchOpportunity(opp, catalog)
	if len(products) == 0 {
		report.Skipped++
		report.Transition(domain.StateSkipping)
		log.Debug("opportunity_skipped", "opportunity_id", opp.ID)
		return nil
	}

	report.Matched++
	report.Transition(domain.StateSubmitting)
	if s.adapter.SingleOfferPerTender() {
		products = products[:1]
	}

	for _, product := range products {
		key := LedgerKey(report.Portal, opportunityKey(opp), product.Code)

		if err := s.checkLedger(ctx, key); err != nil {
			if errors.Is(err, domain.ErrDuplicateSubmission) {
				report.Duplicates++
				s.metrics.SubmissionOutcome(report.Portal, OutcomeDuplicate)
				log.Info("offer_duplicate", "opportunity_id", opp.ID, "product_code", product.Code, "reason", err.Error())
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.recordFailure(report, opp, product, err, log)
			continue
		}

		offer := domain.Offer{
			Opportunity: opp,
			Product:     product,
			Attachments: s.attachments(product, report, log),
		}

		if err := s.adapter.SubmitOffer(ctx, offer); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.recordFailure(report, opp, product, wrapSentinel(domain.ErrSubmissionFailure, err), log)
			// remaining products of this opportunity are not attempted
			return nil
		}

		report.Submitted++
		s.metrics.SubmissionOutcome(report.Portal, OutcomeSubmitted)
		log.Info("offer_submitted", "opportunity_id", opp.ID, "product_code", product.Code, "price", product.Price.String())

		// The offer is on the portal now; record it even if the run is being interrupted.
		recordCtx := context.WithoutCancel(ctx)
		if err := s.ledger.Mark(recordCtx, key, s.config.DedupTTL); err != nil {
			log.Warn("ledger_mark_failed", "opportunity_id", opp.ID, "product_code", product.Code, "error", err.Error())
		}
		if err := s.submissionLog.Append(recordCtx, s.newRecord(report, opp, product)); err != nil {
			wrapped := wrapSentinel(domain.ErrLogWriteFailure, err)
			report.LogFailures = append(report.LogFailures, domain.ItemFailure{
				OpportunityID: opp.ID,
				ProductCode:   product.Code,
				Error:         wrapped.Error(),
			})
			s.metrics.SubmissionOutcome(report.Portal, OutcomeLogFailed)
			log.LogWriteFailed(opp.ID, product.Code, wrapped)
		}

		if err := s.sleep(ctx, s.config.SettleDelay); err != nil {
			return err
		}
	}

	return nil
}

// attachments returns the product files that exist on disk.
// Declared files that are missing are reported and left out, as is an absent
// <datasheet_dir>/<code>.pdf when a datasheet directory is configured.
func (s *BiddingService) attachments(product domain.Product, report *domain.RunReport, log *logger.Logger) []domain.Attachment {
	var out []domain.Attachment
	add := func(kind domain.AttachmentKind, path string) {
		if err := s.checkFile(path); err != nil {
			report.AttachmentWarnings++
			log.AttachmentMissing(product.Code, string(kind), path, err)
			return
		}
		out = append(out, domain.Attachment{Kind: kind, Path: path})
	}

	if product.ImagePath != "" {
		add(domain.AttachmentImage, product.ImagePath)
	}

	switch {
	case product.DatasheetPath != "":
		add(domain.AttachmentDatasheet, product.DatasheetPath)
	case s.config.DatasheetDir != "":
		add(domain.AttachmentDatasheet, filepath.Join(s.config.DatasheetDir, product.Code+".pdf"))
	}

	return out
}

// checkLedger returns ErrDuplicateSubmission when key was already submitted.
// A ledger that cannot answer fails the item closed.
func (s *BiddingService) checkLedger(ctx context.Context, key string) error {
	seen, err := s.ledger.Seen(ctx, key)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if seen {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSubmission, key)
	}
	return nil
}

// checkFile returns ErrAttachmentMissing unless path is a regular file
func (s *BiddingService) checkFile(path string) error {
	info, err := s.stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAttachmentMissing, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrAttachmentMissing, path)
	}
	return nil
}

func (s *BiddingService) recordFailure(report *domain.RunReport, opp domain.Opportunity, product domain.Product, err error, log *logger.Logger) {
	report.Failures = append(report.Failures, domain.ItemFailure{
		OpportunityID: opp.ID,
		ProductCode:   product.Code,
		Error:         err.Error(),
	})
	s.metrics.SubmissionOutcome(report.Portal, OutcomeFailed)
	log.SubmissionFailed(opp.ID, product.Code, err)
}

func (s *BiddingService) newRecord(report *domain.RunReport, opp domain.Opportunity, product domain.Product) domain.SubmissionRecord {
	return domain.SubmissionRecord{
		Timestamp:     s.now(),
		ProductCode:   product.Code,
		Description:   product.Description,
		Price:         product.Price,
		StatusLabel:   s.config.StatusLabel,
		Portal:        report.Portal,
		OpportunityID: opp.ID,
		RunID:         report.RunID,
	}
}

func (s *BiddingService) newReport() *domain.RunReport {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		Portal:    s.config.Portal,
		StartedAt: s.now(),
	}
	report.Transition(domain.StateIdle)
	return report
}

func (s *BiddingService) abortBeforeStart(err error) (*domain.RunReport, error) {
	report := s.newReport()
	log := s.log.WithRun(report.RunID, report.Portal)
	if closeErr := s.adapter.Close(); closeErr != nil {
		log.Warn("adapter_close_failed", "error", closeErr.Error())
	}
	s.finish(report, err, log)
	return report, err
}

func (s *BiddingService) finish(report *domain.RunReport, err error, log *logger.Logger) {
	if err != nil {
		report.Transition(domain.StateAborted)
		report.Err = err.Error()
	} else {
		report.Transition(domain.StateDone)
	}
	report.FinishedAt = s.now()
	duration := report.FinishedAt.Sub(report.StartedAt)
	s.metrics.RunFinished(report.Portal, report.State, duration)

	attrs := []any{
		"state", string(report.State),
		"scanned", report.Scanned,
		"matched", report.Matched,
		"submitted", report.Submitted,
		"duplicates", report.Duplicates,
		"failures", len(report.Failures),
		"log_failures", len(report.LogFailures),
		"duration_ms", duration.Milliseconds(),
	}
	if err != nil {
		log.Error("run_aborted", append(attrs, "error", err.Error())...)
		return
	}
	log.Info("run_finished", attrs...)
}

// LedgerKey builds the dedup key of one offer.
// Format: "{portal}|{opportunity_id}|{product_code}"
func LedgerKey(portal, opportunityID, productCode string) string {
	return portal + "|" + opportunityID + "|" + productCode
}

func opportunityKey(opp domain.Opportunity) string {
	if opp.ID != "" {
		return opp.ID
	}
	return opp.URL
}

// wrapSentinel tags err with a domain sentinel unless it already carries it
func wrapSentinel(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopLedger struct{}

func (nopLedger) Seen(context.Context, string) (bool, error)        { return false, nil }
func (nopLedger) Mark(context.Context, string, time.Duration) error { return nil }

type nopMetrics struct{}

func (nopMetrics) OpportunityScanned(string)                          {}
func (nopMetrics) SubmissionOutcome(string, string)                   {}
func (nopMetrics) RunFinished(string, domain.RunState, time.Duration) {}
