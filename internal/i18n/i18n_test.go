package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.English},
		{"ru-RU,ru;q=0.9,en;q=0.8", language.Russian},
		{"en-US", language.English},
		{"de-DE", language.English},
		{"%%%", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.header))
		})
	}
}

func TestCatalogComplete(t *testing.T) {
	for key := range catalog[language.English] {
		assert.NotEmpty(t, catalog[language.Russian][key], "missing ru text for %s", key)
	}
	assert.Equal(t, catalog[language.English][FallbackReply], Text(language.Japanese, FallbackReply))
}
