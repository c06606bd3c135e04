// Package validator проверяет и нормализует slug и target URL редиректов.
package validator

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL    = errors.New("invalid_url")
	ErrSchemeDenied  = errors.New("target url scheme is not allowed")
	ErrBlockedDomain = errors.New("target url domain is blocked")
)

// DefaultSchemes используется, когда список разрешённых схем пуст
var DefaultSchemes = []string{"https", "http"}

// NormalizeSchemes приводит схемы к нижнему регистру и убирает пустые и повторы
func NormalizeSchemes(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	out := make([]string, 0, len(allowed))
	for _, s := range allowed {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultSchemes...)
	}
	return out
}

// SchemeAllowed сообщает, входит ли схема в список разрешённых
func SchemeAllowed(scheme string, allowed []string) bool {
	scheme = strings.ToLower(scheme)
	for _, s := range NormalizeSchemes(allowed) {
		if s == scheme {
			return true
		}
	}
	return false
}

// DomainAllowed проверяет host по чёрному списку: точное совпадение
// или поддомен ("bad.com" блокирует "api.bad.com").
func DomainAllowed(host string, blocked []string) bool {
	domain := strings.ToLower(strings.TrimSpace(host))
	if domain == "" {
		return false
	}
	for _, item := range blocked {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if domain == item || strings.HasSuffix(domain, "."+item) {
			return false
		}
	}
	return true
}

// ValidateTargetURL проверяет target URL и возвращает нормализованную форму:
// схема и host в нижнем регистре, пустой путь заменяется на "/".
// URL без схемы считается URL первой разрешённой схемы.
func ValidateTargetURL(raw string, allowed []string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidURL
	}

	schemes := NormalizeSchemes(allowed)

	u, err := url.Parse(value)
	if err != nil {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "" && !SchemeAllowed(scheme, schemes) {
		return "", ErrSchemeDenied
	}

	if scheme == "" {
		scheme = schemes[0]
		u, err = url.Parse(scheme + "://" + value)
		if err != nil {
			return "", ErrInvalidURL
		}
	}

	// javascript:alert(1) и подобные разбираются в Opaque без host
	if u.Opaque != "" || strings.TrimSpace(u.Host) == "" {
		return "", ErrInvalidURL
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(strings.TrimSpace(u.Host))
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String(), nil
}

// HostOf возвращает host нормализованного URL без порта
func HostOf(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
