package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		outcome Outcome
		wantNm  string
		wantPh  string
	}{
		{"name and plus seven", "Иван Петров +79991234567", OutcomeExtracted, "Иван Петров", "79991234567"},
		{"grouped plus seven", "+7 (999) 123-45-67", OutcomeExtracted, "", "79991234567"},
		{"trunk prefix eight", "Анна 8 (912) 345-67-89", OutcomeExtracted, "Анна", "89123456789"},
		{"phone first", "79991234567 John Smith", OutcomeExtracted, "John Smith", "79991234567"},
		{"international twelve digits", "Olga 380501234567", OutcomeExtracted, "Olga", "380501234567"},
		{"ten digit local", "Пётр 9991234567", OutcomeExtracted, "Пётр", "9991234567"},
		{"punctuation stripped from name", "Иван, тел: +79991234567!", OutcomeExtracted, "Иван тел", "79991234567"},
		{"too short", "12345", OutcomeInvalidPhone, "", ""},
		{"seven prefix wrong length", "Иван 7123456789", OutcomeInvalidPhone, "", ""},
		{"no digits", "Здравствуйте, хочу записаться", OutcomeNoPhone, "", ""},
		{"short number in sentence", "мне 25 лет", OutcomeNoPhone, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.text)
			require.Equal(t, tc.outcome, got.Outcome, "outcome for %q", tc.text)
			assert.Equal(t, tc.wantNm, got.Name)
			assert.Equal(t, tc.wantPh, got.Phone)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "79991234567", NormalizePhone("+7 (999) 123-45-67"))
	assert.Equal(t, "89991234567", NormalizePhone(" 8-999-123-45-67 "))
	assert.Equal(t, "", NormalizePhone("+"))
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("79991234567"))
	assert.True(t, ValidatePhone("89991234567"))
	assert.True(t, ValidatePhone("491511234567"))
	assert.True(t, ValidatePhone("9991234567"))
	assert.False(t, ValidatePhone("7999123456"), "trunk prefix needs 11 digits")
	assert.False(t, ValidatePhone("799912345678"), "trunk prefix needs 11 digits")
	assert.False(t, ValidatePhone("12345"))
	assert.False(t, ValidatePhone("1234567890123"))
	assert.False(t, ValidatePhone("79991a34567"))
	assert.False(t, ValidatePhone(""))
}

func TestFromPayload(t *testing.T) {
	res := FromPayload("Мария", "+79991234567")
	require.Equal(t, OutcomeExtracted, res.Outcome)
	assert.Equal(t, "Мария", res.Name)
	assert.Equal(t, "79991234567", res.Phone)

	assert.Equal(t, OutcomeInvalidPhone, FromPayload("Мария", "123").Outcome)
	assert.Equal(t, OutcomeNoPhone, FromPayload("Мария", "").Outcome)
}
