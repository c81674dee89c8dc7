package token

import "testing"

func TestGenerateWellFormed(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate() ошибка: %v", err)
	}
	if len(tok) != Length {
		t.Errorf("длина токена = %d, хотели %d", len(tok), Length)
	}
	if !IsWellFormed(tok) {
		t.Errorf("Generate() вернул токен, не проходящий IsWellFormed: %q", tok)
	}
}

// TestGenerateUniqueness — свойство уникальности: 10000 выдач без коллизий.
// При 128 битах энтропии коллизия статистически исключена.
func TestGenerateUniqueness(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate() ошибка на итерации %d: %v", i, err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("коллизия токена на итерации %d: %q", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"корректный токен", "0123456789abcdef0123456789abcdef", true},
		{"короткая строка", "abc", false},
		{"длинная строка", "0123456789abcdef0123456789abcdef00", false},
		{"верхний регистр", "0123456789ABCDEF0123456789ABCDEF", false},
		{"не-hex символы", "0123456789abcdeg0123456789abcdef", false},
		{"пустая строка", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWellFormed(tt.in); got != tt.want {
				t.Errorf("IsWellFormed(%q) = %v, хотели %v", tt.in, got, tt.want)
			}
		})
	}
}
