package services_test

import (
	"testing"

	"biblioteca/internal/services"

	"github.com/stretchr/testify/assert"
)

func TestFormatCPF(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12345678901", want: "123.456.789-01"},
		{in: "123.456.789-01", want: "123.456.789-01"},
		{in: " 123456789-01 ", want: "123.456.789-01"},
		{in: "1234567890", wantErr: true},
		{in: "123456789012", wantErr: true},
		{in: "1234567890a", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := services.FormatCPF(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewValidator_ReportsJSONNames(t *testing.T) {
	v := services.NewValidator()
	err := v.Struct(services.LoanInput{LoanDate: "01/02/2024", DueDate: "2024-02-15"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data_emprestimo")
	assert.Contains(t, err.Error(), "livro_id")
	assert.NotContains(t, err.Error(), "data_devolucao")
}
