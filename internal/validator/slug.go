package validator

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
)

var ErrInvalidSlug = errors.New("invalid slug")

const (
	MinSlugLength = 2
	MaxSlugLength = 128

	slugifyMaxLength = 64
	generatedLength  = 8
	slugCharset      = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9-]+`)
	slugMultiDash  = regexp.MustCompile(`-{2,}`)
	slugPattern    = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// Slugify приводит произвольный текст к slug: нижний регистр, буквы, цифры и дефисы
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = slugDisallowed.ReplaceAllString(s, "-")
	s = slugMultiDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > slugifyMaxLength {
		s = s[:slugifyMaxLength]
	}
	return strings.Trim(s, "-")
}

// ValidateSlug проверяет формат slug (2-128 символов, [a-z0-9-])
func ValidateSlug(slug string) error {
	if len(slug) < MinSlugLength || len(slug) > MaxSlugLength {
		return ErrInvalidSlug
	}
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// GenerateSlug генерирует случайный slug длиной 8 символов
func GenerateSlug() (string, error) {
	result := make([]byte, generatedLength)
	for i := 0; i < generatedLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slugCharset))))
		if err != nil {
			return "", err
		}
		result[i] = slugCharset[num.Int64()]
	}
	return string(result), nil
}
