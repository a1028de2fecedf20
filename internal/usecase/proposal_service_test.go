package usecase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendedor360/backend/internal/domain"
)

func newTestProposalService() *ProposalService {
	svc := NewProposalService()
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestProposalService_Generate(t *testing.T) {
	svc := newTestProposalService()

	p, err := svc.Generate(ProposalRequest{
		SupplierName: "Comercial Vendedor 360 SpA",
		Experience:   "10 años abasteciendo hospitales",
		Capabilities: "artículos de aseo",
		TenderID:     "1234-5-LE24",
		Prices:       "Detergente 5L: 10000\nCloro gel: $ 2.490\nlínea sin precio\n",
		Documents:    []string{"Registro de Proveedores", " ", "Certificado F30"},
		BasesSummary: "Entrega en Santiago",
	})
	require.NoError(t, err)

	assert.Equal(t, "1234-5-LE24", p.TenderID)
	require.Len(t, p.PriceLines, 2)
	assert.Equal(t, "Cloro gel", p.PriceLines[1].Item)
	assert.True(t, p.PriceLines[1].Price.Equal(decimal.NewFromInt(2490)))
	assert.True(t, p.Total.Equal(decimal.NewFromInt(12490)))

	titles := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		SectionSummary, SectionTechnical, SectionEconomic, SectionCoverLetter,
		SectionChecklist, SectionStrategy, SectionDocuments,
	}, titles)

	economic, ok := p.Section(SectionEconomic)
	require.True(t, ok)
	assert.Equal(t, "Detergente 5L: $10000\nCloro gel: $2490", economic.Body)

	technical, _ := p.Section(SectionTechnical)
	assert.Contains(t, technical.Body, "Comercial Vendedor 360 SpA")
	assert.Contains(t, technical.Body, "10 años abasteciendo hospitales")

	docs, _ := p.Section(SectionDocuments)
	assert.Equal(t, []string{"Registro de Proveedores", "Certificado F30"}, docs.Items)

	checklist, _ := p.Section(SectionChecklist)
	assert.Len(t, checklist.Items, 7)

	strategy, _ := p.Section(SectionStrategy)
	assert.Contains(t, strategy.Body, "Entrega en Santiago")
}

func TestProposalService_GenerateDefaults(t *testing.T) {
	p, err := newTestProposalService().Generate(ProposalRequest{SupplierName: "Proveedor"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTenderID, p.TenderID)
	assert.Empty(t, p.PriceLines)
	assert.True(t, p.Total.IsZero())
}

func TestProposalService_GenerateInvalid(t *testing.T) {
	svc := newTestProposalService()

	_, err := svc.Generate(ProposalRequest{SupplierName: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Generate(ProposalRequest{SupplierName: "Proveedor", Prices: "Detergente: caro"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Generate(ProposalRequest{SupplierName: "Proveedor", Prices: ": 100"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestParsePriceLines(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"A: 10000", "10000"},
		{"A: $10.000", "10000"},
		{"A: 1.250.000", "1250000"},
		{"A: 12.5", "12.5"},
		{"Item con: dos puntos: 990", "990"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lines, err := ParsePriceLines(tt.input)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.want, lines[0].Price.String())
		})
	}
}

func TestProposalService_RenderMarkdown(t *testing.T) {
	svc := newTestProposalService()
	p, err := svc.Generate(ProposalRequest{
		SupplierName: "Proveedor",
		Prices:       "Detergente 5L: 10000",
		Documents:    []string{"Certificado F30"},
	})
	require.NoError(t, err)

	md, err := svc.RenderMarkdown(p)
	require.NoError(t, err)

	assert.Contains(t, md, "# Propuesta licitación "+DefaultTenderID)
	assert.Contains(t, md, "Fecha: 2025-03-14")
	assert.Contains(t, md, "## Oferta Económica\n\nDetergente 5L: $10000\n")
	assert.Contains(t, md, "## Documentos Adjuntos\n\n- Certificado F30\n")
	assert.Contains(t, md, "- Bases leídas\n")
}
