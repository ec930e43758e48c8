package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestCatalogsCoverSameKeys(t *testing.T) {
	en := messages[language.English]
	es := messages[language.Spanish]

	for key := range en {
		assert.Contains(t, es, key, "spanish catalog is missing %s", key)
	}
	assert.Len(t, es, len(en))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		lang, accept string
		want         language.Tag
	}{
		{"", "", language.English},
		{"es", "", language.Spanish},
		{"", "es-MX,es;q=0.9,en;q=0.5", language.Spanish},
		{"en", "es-ES", language.English},
		{"", "de-DE", language.English},
		{"not a tag", "", language.English},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.lang, tt.accept), "lang=%q accept=%q", tt.lang, tt.accept)
	}
}

func TestPrinter(t *testing.T) {
	assert.Equal(t, "A candle goes out. 4 remain.", For(language.English).Text(CandleOut, 4))
	assert.Equal(t, "Una vela se apaga. Quedan 4.", For(language.Spanish).Text(CandleOut, 4))
	assert.Equal(t, language.Spanish, For(language.Spanish).Tag())
}

func TestHas(t *testing.T) {
	assert.True(t, Has(PoolExhausted))
	for _, category := range []string{"virtue", "vice", "moment", "brink", "gear"} {
		assert.True(t, Has(CategoryKey(category)), category)
	}
	assert.False(t, Has("missing.key"))
}
