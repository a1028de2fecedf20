package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/usecase"
)

// RunDispatcher starts bidding sessions
type RunDispatcher interface {
	Portals() []string
	RunPortal(ctx context.Context, name string) (*domain.RunReport, error)
	RunAll(ctx context.Context) ([]*domain.RunReport, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	loader      domain.CatalogLoader
	catalogPath string
	matcher     *usecase.MatchingService
	proposals   *usecase.ProposalService
	dispatcher  RunDispatcher
	validate    *validator.Validate
}

// NewHandler creates a new HTTP handler.
// The price list at catalogPath is read on every catalog or match request.
func NewHandler(
	loader domain.CatalogLoader,
	catalogPath string,
	matcher *usecase.MatchingService,
	proposals *usecase.ProposalService,
	dispatcher RunDispatcher,
) *Handler {
	if matcher == nil {
		matcher = usecase.NewMatchingService(usecase.MatchConfig{}, nil)
	}
	if proposals == nil {
		proposals = usecase.NewProposalService()
	}
	return &Handler{
		loader:      loader,
		catalogPath: catalogPath,
		matcher:     matcher,
		proposals:   proposals,
		dispatcher:  dispatcher,
		validate:    validator.New(),
	}
}

// ErrorResponse is the error body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MatchRequest is the body of POST /api/v1/match
type MatchRequest struct {
	Text  string   `json:"text"`
	Items []string `json:"items"`
}

// MatchResponse lists the matched products in catalog order
type MatchResponse struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

// RunRequest is the body of POST /api/v1/runs; an empty portal runs them all
type RunRequest struct {
	Portal string `json:"portal"`
}

// RunResponse carries one report per portal run
type RunResponse struct {
	Reports []*domain.RunReport `json:"reports"`
	Error   string              `json:"error,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	var portals []string
	if h.dispatcher != nil {
		portals = h.dispatcher.Portals()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "vendedor360-backend",
		"version": "1.0.0",
		"portals": portals,
	})
}

// ListCatalog returns the price list
func (h *Handler) ListCatalog(c *gin.Context) {
	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// GetProduct returns one product by code
func (h *Handler) GetProduct(c *gin.Context) {
	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}
	product, found := catalog.Lookup(c.Param("code"))
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// Match returns the catalog products requested by a text
func (h *Handler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text or items is required"})
		return
	}

	catalog, ok := h.loadCatalog(c)
	if !ok {
		return
	}

	products := h.matcher.MatchOpportunity(domain.Opportunity{RawText: req.Text, Items: req.Items}, catalog)
	c.JSON(http.StatusOK, MatchResponse{Products: products, Count: len(products)})
}

// GenerateProposal builds a tender proposal; ?format=markdown returns the rendered document
func (h *Handler) GenerateProposal(c *gin.Context) {
	var req usecase.ProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request parameters", Details: err.Error()})
		return
	}

	proposal, err := h.proposals.Generate(req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if c.Query("format") == "markdown" {
		doc, err := h.proposals.RenderMarkdown(proposal)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc))
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// StartRun runs one portal, or every configured portal, and returns the reports.
// Only one run is allowed at a time.
func (h *Handler) StartRun(c *gin.Context) {
	if h.dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no portals configured"})
		return
	}

	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	if req.Portal != "" {
		report, err := h.dispatcher.RunPortal(ctx, req.Portal)
		if report == nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, runResponse([]*domain.RunReport{report}, err))
		return
	}

	reports, err := h.dispatcher.RunAll(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, runResponse(reports, err))
}

func runResponse(reports []*domain.RunReport, err error) RunResponse {
	resp := RunResponse{Reports: reports}
	if resp.Reports == nil {
		resp.Reports = []*domain.RunReport{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// loadCatalog reads the price list, writing the error response when it fails
func (h *Handler) loadCatalog(c *gin.Context) (*domain.Catalog, bool) {
	if h.loader == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "catalog not configured"})
		return nil, false
	}
	catalog, err := h.loader.Load(h.catalogPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load catalog", Details: err.Error()})
		return nil, false
	}
	return catalog, true
}

// handleError maps domain errors to HTTP responses
func (h *Handler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownPortal):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRunInProgress):
		status = http.StatusConflict
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
