package usecase

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendedor360/backend/internal/domain"
)

// Proposal section titles, in rendering order
const (
	SectionSummary     = "Resumen Ejecutivo"
	SectionTechnical   = "Oferta Técnica"
	SectionEconomic    = "Oferta Económica"
	SectionCoverLetter = "Carta de Presentación"
	SectionChecklist   = "Checklist"
	SectionStrategy    = "Análisis Estratégico"
	SectionDocuments   = "Documentos Adjuntos"
)

// DefaultTenderID is used when the request names no tender
const DefaultTenderID = "2239-8-LR25"

// ProposalRequest is the supplier input for a tender proposal
type ProposalRequest struct {
	SupplierName string   `json:"supplierName" validate:"required"`
	Experience   string   `json:"experience"`
	Capabilities string   `json:"capabilities"`
	TenderID     string   `json:"tenderId"`
	Prices       string   `json:"prices"` // one "item: price" entry per line
	Documents    []string `json:"documents"`
	BasesSummary string   `json:"basesSummary"`
}

// PriceLine is one priced item of the economic offer
type PriceLine struct {
	Item  string          `json:"item"`
	Price decimal.Decimal `json:"price"`
}

// ProposalSection is either free text or a bullet list
type ProposalSection struct {
	Title string   `json:"title"`
	Body  string   `json:"body,omitempty"`
	Items []string `json:"items,omitempty"`
}

// Proposal is a generated tender proposal
type Proposal struct {
	TenderID     string            `json:"tenderId"`
	SupplierName string            `json:"supplierName"`
	GeneratedAt  time.Time         `json:"generatedAt"`
	PriceLines   []PriceLine       `json:"priceLines"`
	Total        decimal.Decimal   `json:"total"`
	Sections     []ProposalSection `json:"sections"`
}

// Section returns the section with the given title
func (p *Proposal) Section(title string) (ProposalSection, bool) {
	for _, s := range p.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return ProposalSection{}, false
}

var proposalChecklist = []string{
	"Bases leídas",
	"Oferta técnica redactada",
	"Oferta económica generada",
	"Documentos legales adjuntos (Registro de Proveedores, Certificados)",
	"Carta de presentación firmada",
	"Declaraciones juradas completadas en plataforma",
	"Revisión de INAPI/ISP para productos ofertados",
}

// chileanThousandsRegex matches prices written as "10.000" or "1.250.000"
var chileanThousandsRegex = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d+)?$`)

var markdownTemplate = template.Must(template.New("proposal").Parse(`# Propuesta licitación {{ .TenderID }}

Proveedor: {{ .SupplierName }}
Fecha: {{ .GeneratedAt.Format "2006-01-02" }}
{{ range .Sections }}
## {{ .Title }}
{{ if .Items }}
{{ range .Items }}- {{ . }}
{{ end }}{{ else }}
{{ .Body }}
{{ end }}{{ end }}`))

// ProposalService generates tender proposals from supplier data
type ProposalService struct {
	now func() time.Time
}

// NewProposalService creates a new proposal service
func NewProposalService() *ProposalService {
	return &ProposalService{now: time.Now}
}

// Generate builds a proposal. Price lines that do not parse are rejected.
func (s *ProposalService) Generate(req ProposalRequest) (*Proposal, error) {
	supplier := strings.TrimSpace(req.SupplierName)
	if supplier == "" {
		return nil, fmt.Errorf("%w: supplier name is required", domain.ErrInvalidRequest)
	}

	lines, err := ParsePriceLines(req.Prices)
	if err != nil {
		return nil, err
	}

	tenderID := strings.TrimSpace(req.TenderID)
	if tenderID == "" {
		tenderID = DefaultTenderID
	}

	total := decimal.Zero
	economic := make([]string, 0, len(lines))
	for _, l := range lines {
		total = total.Add(l.Price)
		economic = append(economic, fmt.Sprintf("%s: $%s", l.Item, l.Price.String()))
	}

	documents := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d = strings.TrimSpace(d); d != "" {
			documents = append(documents, d)
		}
	}

	technical := fmt.Sprintf("Nuestra empresa, %s, cuenta con %s. Nos especializamos en %s, cumpliendo con los requisitos exigidos en las bases, "+
		"como inscripción vigente en el Registro de Proveedores, declaración jurada, uso de productos con registro INAPI/ISP, "+
		"y condiciones técnicas y logísticas conforme a las normativas de ChileCompra.",
		supplier, orDefault(req.Experience, "experiencia en el rubro"), orDefault(req.Capabilities, "artículos de aseo e higiene"))

	strategy := "La oferta técnica fue desarrollada en base a los criterios establecidos en las bases del Convenio Marco, " +
		"priorizando cumplimiento normativo, experiencia comprobable, condiciones logísticas a nivel nacional y registro de productos. " +
		"La estrategia económica se enfoca en mantener precios competitivos dentro del rango evaluable según metodología boxplot usada por la DCCP."
	if bases := strings.TrimSpace(req.BasesSummary); bases != "" {
		strategy += "\n\nBases consideradas: " + bases
	}

	return &Proposal{
		TenderID:     tenderID,
		SupplierName: supplier,
		GeneratedAt:  s.now(),
		PriceLines:   lines,
		Total:        total,
		Sections: []ProposalSection{
			{Title: SectionSummary, Body: fmt.Sprintf("Propuesta para la licitación pública ID %s, presentada por %s.", tenderID, supplier)},
			{Title: SectionTechnical, Body: technical},
			{Title: SectionEconomic, Body: strings.Join(economic, "\n")},
			{Title: SectionCoverLetter, Body: fmt.Sprintf("Sres. Comisión Evaluadora,\n\nPor medio de la presente, %s presenta su postulación a la licitación pública ID %s, "+
				"de acuerdo a lo establecido en las Bases Administrativas y Técnicas. "+
				"Nos comprometemos a cumplir con los estándares técnicos, normativos y contractuales exigidos.", supplier, tenderID)},
			{Title: SectionChecklist, Items: append([]string(nil), proposalChecklist...)},
			{Title: SectionStrategy, Body: strategy},
			{Title: SectionDocuments, Items: documents},
		},
	}, nil
}

// RenderMarkdown renders a proposal as a Markdown document
func (s *ProposalService) RenderMarkdown(p *Proposal) (string, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render proposal: %w", err)
	}
	return buf.String(), nil
}

// ParsePriceLines parses "item: price" lines. Lines without a colon are ignored;
// an unparseable price is an invalid request.
func ParsePriceLines(raw string) ([]PriceLine, error) {
	var lines []PriceLine
	for i, line := range strings.Split(raw, "\n") {
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		item := strings.TrimSpace(line[:idx])
		priceText := strings.TrimSpace(line[idx+1:])
		if item == "" {
			return nil, fmt.Errorf("%w: line %d has no item", domain.ErrInvalidRequest, i+1)
		}
		price, err := parseProposalPrice(priceText)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidRequest, i+1, err)
		}
		lines = append(lines, PriceLine{Item: item, Price: price})
	}
	return lines, nil
}

func parseProposalPrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	s = strings.ReplaceAll(s, " ", "")
	if chileanThousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not a number", s)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price %s is negative", price)
	}
	return price, nil
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
