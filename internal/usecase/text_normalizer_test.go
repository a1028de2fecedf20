package usecase

import "testing"

func TestTextNormalizer_Normalize(t *testing.T) {
	tests := []struct {
		name        string
		foldAccents bool
		input       string
		want        string
	}{
		{name: "empty", input: "", want: ""},
		{name: "upper case", input: "DETERGENTE 5L", want: "detergente 5l"},
		{name: "collapses whitespace", input: "  Cloro \t gel\n900ml ", want: "cloro gel 900ml"},
		{name: "keeps accents by default", input: "Jabón Líquido", want: "jabón líquido"},
		{name: "folds accents when enabled", foldAccents: true, input: "Jabón Líquido", want: "jabon liquido"},
		{name: "unicode case folding", input: "ÑANDÚ", want: "ñandú"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTextNormalizer(tt.foldAccents).Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
