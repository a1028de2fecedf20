package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendedor360/backend/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	loader, err := NewLoader(Options{})
	require.NoError(t, err)
	return loader
}

func TestLoad_CSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "precios.csv", `code,description,brand,category,price,image_path,datasheet_path
A1,Detergente 5L,Clorox,Aseo,10000,img/a1.png,
B2,Cloro gel 900ml,Clorox,Aseo,2490.50,,/abs/fichas/B2.pdf
C3,Papel higiénico 48 rollos,Elite,Papel,15990,,
`)

	cat, err := newTestLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, []string{"A1", "B2", "C3"}, cat.Codes())
	assert.Equal(t, path, cat.Source)

	a1, ok := cat.Lookup("A1")
	require.True(t, ok)
	assert.Equal(t, "Detergente 5L", a1.Description)
	assert.True(t, a1.Price.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, filepath.Join(dir, "img", "a1.png"), a1.ImagePath)
	assert.Empty(t, a1.DatasheetPath)

	b2, _ := cat.Lookup("B2")
	assert.True(t, b2.Price.Equal(decimal.RequireFromString("2490.5")))
	assert.Equal(t, filepath.Clean("/abs/fichas/B2.pdf"), b2.DatasheetPath)
}

func TestLoad_CSV_SpanishHeadersAndSemicolon(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lista.csv", "\ufeffCódigo;Descripción;Marca;Categoría;Precio;Ficha Técnica\n"+
		"A1;Detergente 5L;Clorox;Aseo;$ 10000;fichas/A1.pdf\n")

	cat, err := newTestLoader(t).Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())

	p := cat.Products[0]
	assert.Equal(t, "A1", p.Code)
	assert.Equal(t, "Clorox", p.Brand)
	assert.Equal(t, "Aseo", p.Category)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, filepath.Join(dir, "fichas", "A1.pdf"), p.DatasheetPath)
}

func TestLoad_CSV_Windows1252(t *testing.T) {
	dir := t.TempDir()
	content := "code,description,brand,category,price\nA1,Jabón líquido,Dove,Aseo,1990\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(content)
	require.NoError(t, err)
	path := writeFile(t, dir, "latin.csv", encoded)

	loader, err := NewLoader(Options{Encoding: "windows-1252"})
	require.NoError(t, err)

	cat, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Jabón líquido", cat.Products[0].Description)
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "precios.json", `[
  {"code": "A1", "description": "Detergente 5L", "brand": "Clorox", "category": "Aseo", "price": 10000, "image_path": "a1.png"},
  {"code": "B2", "description": "Cloro gel", "brand": "", "category": "", "price": "2490"}
]`)

	cat, err := newTestLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"A1", "B2"}, cat.Codes())
	assert.Equal(t, filepath.Join(dir, "a1.png"), cat.Products[0].ImagePath)
	assert.True(t, cat.Products[1].Price.Equal(decimal.NewFromInt(2490)))
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "precios.xlsx", "whatever")

	cat, err := newTestLoader(t).Load(path)
	assert.Nil(t, cat)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestLoad_MalformedRecords(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantRow   int
		wantField string
	}{
		{
			name:      "csv header without brand",
			file:      "a.csv",
			content:   "code,description,category,price\nA1,Detergente,Aseo,100\n",
			wantRow:   0,
			wantField: FieldBrand,
		},
		{
			name:      "csv short row",
			file:      "b.csv",
			content:   "code,description,brand,category,price\nA1,Detergente,Clorox,Aseo,100\nB2,Cloro\n",
			wantRow:   2,
			wantField: FieldBrand,
		},
		{
			name:      "csv non numeric price",
			file:      "c.csv",
			content:   "code,description,brand,category,price\nA1,Detergente,Clorox,Aseo,diez mil\n",
			wantRow:   1,
			wantField: FieldPrice,
		},
		{
			name:      "csv negative price",
			file:      "d.csv",
			content:   "code,description,brand,category,price\nA1,Detergente,Clorox,Aseo,-5\n",
			wantRow:   1,
			wantField: FieldPrice,
		},
		{
			name:      "csv empty code",
			file:      "e.csv",
			content:   "code,description,brand,category,price\n,Detergente,Clorox,Aseo,5\n",
			wantRow:   1,
			wantField: FieldCode,
		},
		{
			name:      "csv duplicate code",
			file:      "f.csv",
			content:   "code,description,brand,category,price\nA1,Detergente,Clorox,Aseo,5\nA1,Otro,Clorox,Aseo,6\n",
			wantRow:   2,
			wantField: FieldCode,
		},
		{
			name:      "json missing category",
			file:      "g.json",
			content:   `[{"code":"A1","description":"Detergente","brand":"Clorox","category":"Aseo","price":1},{"code":"B2","description":"Cloro","brand":"Clorox","price":2}]`,
			wantRow:   2,
			wantField: FieldCategory,
		},
		{
			name:      "json null price",
			file:      "h.json",
			content:   `[{"code":"A1","description":"Detergente","brand":"Clorox","category":"Aseo","price":null}]`,
			wantRow:   1,
			wantField: FieldPrice,
		},
		{
			name:      "json code given under two aliases",
			file:      "i.json",
			content:   `[{"code":"A1","codigo":"Z9","description":"Detergente","brand":"Clorox","category":"Aseo","price":1}]`,
			wantRow:   1,
			wantField: FieldCode,
		},
		{
			name:      "json trailing data",
			file:      "j.json",
			content:   `[{"code":"A1","description":"Detergente","brand":"Clorox","category":"Aseo","price":1}] garbage`,
			wantRow:   0,
			wantField: FieldCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			cat, err := newTestLoader(t).Load(path)
			assert.Nil(t, cat, "no partial catalog on malformed input")
			require.ErrorIs(t, err, domain.ErrMalformedRecord)

			var mre *domain.MalformedRecordError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, tt.wantRow, mre.Row)
			assert.Equal(t, tt.wantField, mre.Field)
		})
	}
}

func TestLoad_JSON_AliasCollisionIsStable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "precios.json",
		`[{"sku":"S1","codigo":"Z9","code":"A1","description":"Detergente","brand":"Clorox","category":"Aseo","price":1}]`)
	loader := newTestLoader(t)

	_, first := loader.Load(path)
	require.Error(t, first)
	for range 20 {
		_, err := loader.Load(path)
		assert.EqualError(t, err, first.Error())
	}
}

func TestLoad_JSON_TrailingWhitespace(t *testing.T) {
	path := writeFile(t, t.TempDir(), "precios.json",
		"[{\"code\":\"A1\",\"description\":\"Detergente\",\"brand\":\"Clorox\",\"category\":\"Aseo\",\"price\":1}]\n\n")

	cat, err := newTestLoader(t).Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, cat.Codes())
}

func TestNewLoader_UnknownEncoding(t *testing.T) {
	_, err := NewLoader(Options{Encoding: "ebcdic"})
	assert.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Código":         "codigo",
		" Descripción ":  "descripcion",
		"Ficha Técnica":  "ficha_tecnica",
		"\ufeffcode":     "code",
		"DATASHEET-PATH": "datasheet_path",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}
