package service

import (
	"testing"

	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUTM(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		params *models.UTMParams
		want   string
	}{
		{
			name:   "source only, empty path",
			url:    "https://example.com",
			params: &models.UTMParams{Source: "fb"},
			want:   "https://example.com/?utm_source=fb",
		},
		{
			name:   "all params in fixed order",
			url:    "https://example.com/landing",
			params: &models.UTMParams{Campaign: "spring sale", Medium: "email", Source: "newsletter"},
			want:   "https://example.com/landing?utm_source=newsletter&utm_medium=email&utm_campaign=spring+sale",
		},
		{
			name:   "existing query preserved",
			url:    "https://example.com/p?id=7",
			params: &models.UTMParams{Medium: "cpc"},
			want:   "https://example.com/p?id=7&utm_medium=cpc",
		},
		{
			name:   "nil params",
			url:    "https://example.com",
			params: nil,
			want:   "https://example.com",
		},
		{
			name:   "empty params",
			url:    "https://example.com",
			params: &models.UTMParams{},
			want:   "https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyUTM(tt.url, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyUTM_ParseFailure(t *testing.T) {
	for _, raw := range []string{"not a url", "/relative/path", "http://[::1"} {
		_, err := applyUTM(raw, &models.UTMParams{Source: "fb"})
		assert.Error(t, err, raw)
	}
}
