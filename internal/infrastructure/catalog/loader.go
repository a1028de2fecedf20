package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/vendedor360/backend/internal/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical field names of a price list record
const (
	FieldCode          = "code"
	FieldDescription   = "description"
	FieldBrand         = "brand"
	FieldCategory      = "category"
	FieldPrice         = "price"
	FieldImagePath     = "image_path"
	FieldDatasheetPath = "datasheet_path"
)

// requiredFields must be present in every record, in this order of reporting
var requiredFields = []string{FieldCode, FieldDescription, FieldBrand, FieldCategory, FieldPrice}

// nonEmptyFields must also carry a value
var nonEmptyFields = map[string]bool{FieldCode: true, FieldDescription: true, FieldPrice: true}

// fieldAliases maps normalized header names used by existing price lists to canonical fields
var fieldAliases = map[string]string{
	"code": FieldCode, "codigo": FieldCode, "sku": FieldCode,
	"description": FieldDescription, "descripcion": FieldDescription,
	"brand": FieldBrand, "marca": FieldBrand,
	"category": FieldCategory, "categoria": FieldCategory,
	"price": FieldPrice, "precio": FieldPrice,
	"image_path": FieldImagePath, "imagen": FieldImagePath, "image": FieldImagePath,
	"datasheet_path": FieldDatasheetPath, "ficha_tecnica": FieldDatasheetPath, "datasheet": FieldDatasheetPath,
}

// Options controls how price lists are decoded
type Options struct {
	// Encoding of CSV files: "utf-8" (default), "windows-1252" or "iso-8859-1"
	Encoding string
	// Delimiter for CSV files; zero sniffs ',' or ';' from the header line
	Delimiter rune
}

// Loader reads CSV and JSON price lists into a domain.Catalog
type Loader struct {
	encoding  encoding.Encoding
	delimiter rune
}

// NewLoader creates a loader with the given options
func NewLoader(opts Options) (*Loader, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return &Loader{encoding: enc, delimiter: opts.Delimiter}, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported catalog encoding %q", name)
	}
}

// Load reads the catalog at path. The extension selects the format.
// The first malformed record aborts the load; no partial catalog is returned.
func (l *Loader) Load(path string) (*domain.Catalog, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".json" {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	var records []map[string]*string
	if ext == ".csv" {
		records, err = l.readCSV(f, path)
	} else {
		records, err = readJSON(f, path)
	}
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)
	products := make([]domain.Product, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		row := i + 1
		p, err := toProduct(rec, baseDir, path, row)
		if err != nil {
			return nil, err
		}
		if seen[p.Code] {
			return nil, &domain.MalformedRecordError{Source: path, Row: row, Field: FieldCode, Reason: "duplicate code " + p.Code}
		}
		seen[p.Code] = true
		products = append(products, p)
	}

	return domain.NewCatalog(path, products), nil
}

func (l *Loader) readCSV(r io.Reader, source string) ([]map[string]*string, error) {
	var in io.Reader = r
	if l.encoding != nil {
		in = transform.NewReader(r, l.encoding.NewDecoder())
	}
	br := bufio.NewReader(in)

	delimiter := l.delimiter
	if delimiter == 0 {
		firstLine, _ := br.Peek(4096)
		if i := bytes.IndexByte(firstLine, '\n'); i >= 0 {
			firstLine = firstLine[:i]
		}
		delimiter = sniffDelimiter(firstLine)
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.MalformedRecordError{Source: source, Row: 0, Field: FieldCode, Reason: "missing header"}
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if field, ok := fieldAliases[normalizeHeader(name)]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = i
			}
		}
	}
	for _, field := range requiredFields {
		if _, ok := columns[field]; !ok {
			return nil, &domain.MalformedRecordError{Source: source, Row: 0, Field: field, Reason: "column missing from header"}
		}
	}

	var records []map[string]*string
	for row := 1; ; row++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.MalformedRecordError{Source: source, Row: row, Field: FieldCode, Reason: err.Error()}
		}
		if isBlankRow(values) {
			row--
			continue
		}
		rec := make(map[string]*string, len(columns))
		for field, idx := range columns {
			if idx < len(values) {
				v := values[idx]
				rec[field] = &v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func readJSON(r io.Reader, source string) ([]map[string]*string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &domain.MalformedRecordError{Source: source, Row: 0, Field: FieldCode, Reason: "invalid JSON array: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &domain.MalformedRecordError{Source: source, Row: 0, Field: FieldCode, Reason: "unexpected data after the JSON array"}
	}

	records := make([]map[string]*string, 0, len(raw))
	for i, obj := range raw {
		if obj == nil {
			return nil, &domain.MalformedRecordError{Source: source, Row: i + 1, Field: FieldCode, Reason: "record is null"}
		}
		rec := make(map[string]*string, len(obj))
		given := make(map[string]string, len(obj))
		for _, key := range slices.Sorted(maps.Keys(obj)) {
			field, ok := fieldAliases[normalizeHeader(key)]
			if !ok {
				continue
			}
			if prev, dup := given[field]; dup {
				return nil, &domain.MalformedRecordError{Source: source, Row: i + 1, Field: field, Reason: fmt.Sprintf("field given twice (%q and %q)", prev, key)}
			}
			given[field] = key
			value := obj[key]
			if value == nil {
				continue
			}
			var s string
			switch v := value.(type) {
			case string:
				s = v
			case json.Number:
				s = v.String()
			case bool:
				s = fmt.Sprint(v)
			default:
				return nil, &domain.MalformedRecordError{Source: source, Row: i + 1, Field: field, Reason: "expected a scalar value"}
			}
			rec[field] = &s
		}
		records = append(records, rec)
	}
	return records, nil
}

func toProduct(rec map[string]*string, baseDir, source string, row int) (domain.Product, error) {
	for _, field := range requiredFields {
		v, ok := rec[field]
		if !ok || v == nil {
			return domain.Product{}, &domain.MalformedRecordError{Source: source, Row: row, Field: field, Reason: "missing required field"}
		}
		if nonEmptyFields[field] && strings.TrimSpace(*v) == "" {
			return domain.Product{}, &domain.MalformedRecordError{Source: source, Row: row, Field: field, Reason: "empty value"}
		}
	}

	price, err := parsePrice(*rec[FieldPrice])
	if err != nil {
		return domain.Product{}, &domain.MalformedRecordError{Source: source, Row: row, Field: FieldPrice, Reason: err.Error()}
	}

	return domain.Product{
		Code:          strings.TrimSpace(*rec[FieldCode]),
		Description:   strings.TrimSpace(*rec[FieldDescription]),
		Brand:         strings.TrimSpace(*rec[FieldBrand]),
		Category:      strings.TrimSpace(*rec[FieldCategory]),
		Price:         price,
		ImagePath:     resolvePath(baseDir, rec[FieldImagePath]),
		DatasheetPath: resolvePath(baseDir, rec[FieldDatasheetPath]),
	}, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not a number", raw)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price %s is negative", price)
	}
	return price, nil
}

// resolvePath resolves optional attachment paths against the catalog directory.
// Existence is checked at submission time, not here.
func resolvePath(baseDir string, v *string) string {
	if v == nil {
		return ""
	}
	p := strings.TrimSpace(*v)
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return filepath.Clean(p)
}

func sniffDelimiter(line []byte) rune {
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func isBlankRow(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// normalizeHeader lowercases, strips accents and BOM, and joins words with underscores
func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}
