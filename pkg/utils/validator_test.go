package utils

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{"0.01", false},
		{"1250", false},
		{"10.100", false},
		{"0", true},
		{"-5", true},
		{"10.001", true},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCurrencyCode(t *testing.T) {
	assert.Equal(t, "EUR", NormalizeCurrencyCode(" eur "))
	assert.NoError(t, ValidateCurrencyCode("USD"))
	assert.Error(t, ValidateCurrencyCode("usd"))
	assert.Error(t, ValidateCurrencyCode("US"))
	assert.Error(t, ValidateCurrencyCode("DOLLAR"))
}

func TestValidateDescription(t *testing.T) {
	assert.NoError(t, ValidateDescription(strings.Repeat("a", MaxDescriptionLength)))
	assert.Error(t, ValidateDescription(strings.Repeat("a", MaxDescriptionLength+1)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "taxi to airport", SanitizeString("taxi\x00 to\x07 airport"))
	assert.Equal(t, "line", SanitizeString("line\n"))
}
