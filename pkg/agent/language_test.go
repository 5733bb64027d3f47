package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", Multilingual, true},
		{"en", "english", true},
		{" ZH ", "chinese", true},
		{"french", "french", true},
		{"multilingual", Multilingual, true},
		{"klingon", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveLanguage(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestResponseLanguage(t *testing.T) {
	assert.Equal(t, "japanese", responseLanguage("ja", "en"))
	assert.Equal(t, "english", responseLanguage("klingon", "en"))
	assert.Equal(t, Multilingual, responseLanguage("klingon", "elvish"))
}

func TestVerbalHint(t *testing.T) {
	assert.Empty(t, verbalHint("english"))
	assert.Empty(t, verbalHint(Multilingual))
	assert.Equal(t, "(ONLY IN NATIVE GERMAN)", verbalHint("german"))
}
