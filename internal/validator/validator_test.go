package validator_test

import (
	"strings"
	"testing"

	"github.com/SergeiKhy/routeforge/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTargetURL_Normalizes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"без изменений", "https://example.com/x", "https://example.com/x"},
		{"регистр схемы и host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"пустой путь", "http://example.com", "http://example.com/"},
		{"без схемы", "example.com/docs", "https://example.com/docs"},
		{"пробелы", "  https://example.com/a?b=1  ", "https://example.com/a?b=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateTargetURL(tt.in, []string{"https", "http"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTargetURL_Rejects(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"javascript:alert(1)",
		"ftp://example.com/file",
		"https:///no-host",
		"data:text/html,hi",
	}

	for _, raw := range invalid {
		_, err := validator.ValidateTargetURL(raw, nil)
		assert.Error(t, err, "URL должен быть невалидным: %q", raw)
	}
}

func TestValidateTargetURL_DisallowedSchemeError(t *testing.T) {
	_, err := validator.ValidateTargetURL("javascript:alert(1)", []string{"https", "http"})
	assert.ErrorIs(t, err, validator.ErrSchemeDenied)

	_, err = validator.ValidateTargetURL("http://example.com", []string{"https"})
	assert.ErrorIs(t, err, validator.ErrSchemeDenied)
}

func TestValidateTargetURL_SchemelessUsesFirstAllowed(t *testing.T) {
	got, err := validator.ValidateTargetURL("example.com", []string{"http", "https"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/", got)
}

func TestDomainAllowed(t *testing.T) {
	blocked := []string{"bad.com", " Evil.org "}

	assert.True(t, validator.DomainAllowed("example.com", blocked))
	assert.True(t, validator.DomainAllowed("notbad.com", blocked))
	assert.False(t, validator.DomainAllowed("bad.com", blocked))
	assert.False(t, validator.DomainAllowed("api.bad.com", blocked))
	assert.False(t, validator.DomainAllowed("EVIL.ORG", blocked))
	assert.False(t, validator.DomainAllowed("", blocked))
	assert.True(t, validator.DomainAllowed("example.com", nil))
}

func TestNormalizeSchemes(t *testing.T) {
	assert.Equal(t, []string{"https", "http"}, validator.NormalizeSchemes(nil))
	assert.Equal(t, []string{"https"}, validator.NormalizeSchemes([]string{" HTTPS", "https", ""}))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "my-release-v1-2", validator.Slugify("  My Release v1.2!! "))
	assert.Equal(t, "a-b", validator.Slugify("a---b"))
	assert.Equal(t, "", validator.Slugify("%%%"))
	assert.Len(t, validator.Slugify(strings.Repeat("x", 200)), 64)
}

func TestValidateSlug(t *testing.T) {
	assert.NoError(t, validator.ValidateSlug("demo"))
	assert.NoError(t, validator.ValidateSlug("v1-2"))
	assert.ErrorIs(t, validator.ValidateSlug("a"), validator.ErrInvalidSlug)
	assert.ErrorIs(t, validator.ValidateSlug("Demo"), validator.ErrInvalidSlug)
	assert.ErrorIs(t, validator.ValidateSlug("bad_slug"), validator.ErrInvalidSlug)
	assert.ErrorIs(t, validator.ValidateSlug(strings.Repeat("a", 129)), validator.ErrInvalidSlug)
}

func TestGenerateSlug(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		slug, err := validator.GenerateSlug()
		require.NoError(t, err)
		assert.Len(t, slug, 8)
		assert.NoError(t, validator.ValidateSlug(slug))
		assert.NotContains(t, seen, slug)
		seen[slug] = true
	}
}
