package usecase

import (
	"strings"

	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	// Bidirectional also matches when the opportunity text is contained in a
	// product description (short opportunity titles vs. long descriptions).
	Bidirectional      bool
	FoldAccents        bool
	EnableDebugLogging bool
}

// MatchingService decides which catalog products an opportunity asks for.
// Matching is a pure function of its inputs.
type MatchingService struct {
	normalizer         *TextNormalizer
	bidirectional      bool
	enableDebugLogging bool
	log                *logger.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig, log *logger.Logger) *MatchingService {
	if log == nil {
		log = logger.Discard()
	}
	return &MatchingService{
		normalizer:         NewTextNormalizer(config.FoldAccents),
		bidirectional:      config.Bidirectional,
		enableDebugLogging: config.EnableDebugLogging,
		log:                log,
	}
}

// Match returns every product whose code or description appears in text,
// case-insensitively, in catalog order. No match yields an empty slice.
func (s *MatchingService) Match(text string, catalog *domain.Catalog) []domain.Product {
	return s.matchTexts([]string{text}, catalog)
}

// MatchOpportunity matches the opportunity's raw text and each requested item,
// returning the union in catalog order without duplicates.
func (s *MatchingService) MatchOpportunity(opp domain.Opportunity, catalog *domain.Catalog) []domain.Product {
	texts := make([]string, 0, 1+len(opp.Items))
	texts = append(texts, opp.RawText)
	texts = append(texts, opp.Items...)
	return s.matchTexts(texts, catalog)
}

func (s *MatchingService) matchTexts(texts []string, catalog *domain.Catalog) []domain.Product {
	matches := []domain.Product{}
	if catalog.Len() == 0 {
		return matches
	}

	normalized := make([]string, 0, len(texts))
	for _, t := range texts {
		if n := s.normalizer.Normalize(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return matches
	}

	for _, product := range catalog.Products {
		code := s.normalizer.Normalize(product.Code)
		description := s.normalizer.Normalize(product.Description)

		for _, text := range normalized {
			if s.contains(text, code, description) {
				matches = append(matches, product)
				break
			}
		}
	}

	if s.enableDebugLogging {
		s.log.Debug("match", "texts", len(normalized), "matched", len(matches))
	}

	return matches
}

func (s *MatchingService) contains(text, code, description string) bool {
	if code != "" && strings.Contains(text, code) {
		return true
	}
	if description != "" && strings.Contains(text, description) {
		return true
	}
	return s.bidirectional && description != "" && strings.Contains(description, text)
}
