// Package referrer извлекает host и UTM-метки из заголовка Referer и
// query-строки редиректа и сворачивает их в компактную строку
// вида "host?utm_source=...&utm_medium=...".
package referrer

import (
	"net/url"
	"strings"
)

// UTM стандартные метки кампании
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Ref разобранный referrer
type Ref struct {
	Host string `json:"host,omitempty"`
	UTM  UTM    `json:"utm"`
}

// utmKeys порядок ключей при сериализации
var utmKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

func (u *UTM) field(key string) *string {
	switch key {
	case "utm_source":
		return &u.Source
	case "utm_medium":
		return &u.Medium
	case "utm_campaign":
		return &u.Campaign
	case "utm_term":
		return &u.Term
	case "utm_content":
		return &u.Content
	}
	return nil
}

// Get возвращает значение по полному имени параметра (utm_source, ...)
func (u UTM) Get(key string) string {
	if p := u.field(strings.ToLower(key)); p != nil {
		return *p
	}
	return ""
}

// IsZero true, если ни одна метка не заполнена
func (u UTM) IsZero() bool {
	return u == UTM{}
}

// Parse разбирает referrer и query-строку запроса. Метки из query самого
// запроса важнее меток внутри referrer; из referrer берутся только недостающие.
func Parse(header, rawQuery string) Ref {
	ref := Ref{Host: extractHost(header)}

	fillUTM(&ref.UTM, rawQuery, true)

	if header != "" {
		if u, err := url.Parse(strings.TrimSpace(header)); err == nil {
			fillUTM(&ref.UTM, u.RawQuery, false)
		}
	}

	return ref
}

// Serialize сворачивает host и метки в строку для хранения. Если ни host,
// ни меток нет, возвращается очищенный fallback (обычно сырой referrer).
func Serialize(host string, utm UTM, fallback string) string {
	var parts []string
	for _, key := range utmKeys {
		if v := utm.Get(key); v != "" {
			parts = append(parts, key+"="+url.QueryEscape(v))
		}
	}
	query := strings.Join(parts, "&")
	host = strings.ToLower(strings.TrimSpace(host))

	switch {
	case host != "" && query != "":
		return host + "?" + query
	case host != "":
		return host
	case query != "":
		return "?" + query
	}
	return strings.TrimSpace(fallback)
}

// Decode восстанавливает host и метки из строки, сохранённой Serialize
func Decode(value string) Ref {
	var ref Ref
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ref
	}

	var host, query string
	switch {
	case strings.Contains(raw, "://"):
		if u, err := url.Parse(raw); err == nil {
			host = u.Hostname()
			if host == "" {
				host = u.Host
			}
			query = u.RawQuery
		}
	case strings.HasPrefix(raw, "?"):
		query = raw[1:]
	case strings.Contains(raw, "?"):
		host, query, _ = strings.Cut(raw, "?")
	default:
		host = raw
	}

	ref.Host = strings.ToLower(strings.TrimSpace(host))
	fillUTM(&ref.UTM, query, true)
	return ref
}

// fillUTM переносит utm_* из query в utm в порядке следования пар:
// при повторе ключа (в любом регистре) побеждает последнее непустое значение.
// При overwrite=false поля, заполненные до вызова, не меняются.
func fillUTM(utm *UTM, rawQuery string, overwrite bool) {
	if rawQuery == "" {
		return
	}
	seen := make(map[*string]bool)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		p := utm.field(strings.ToLower(key))
		if p == nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil || value == "" {
			continue
		}
		if overwrite || *p == "" || seen[p] {
			*p = value
			seen[p] = true
		}
	}
}

// extractHost достаёт host из referrer. Поддерживает и полные URL,
// и "голые" значения вида "blog.example.com/post".
func extractHost(header string) string {
	ref := strings.TrimSpace(header)
	if ref == "" {
		return ""
	}

	var host string
	if u, err := url.Parse(ref); err == nil {
		host = u.Hostname()
		if host == "" {
			host = u.Host
		}
		if host == "" && u.Scheme == "" && u.Path != "" && !strings.Contains(u.Path, "//") {
			host, _, _ = strings.Cut(u.Path, "/")
		}
	}

	if host == "" && !strings.Contains(ref, "://") {
		candidate, _, _ := strings.Cut(ref, "/")
		candidate, _, _ = strings.Cut(candidate, "?")
		candidate, _, _ = strings.Cut(candidate, "#")
		host = candidate
	}

	return strings.ToLower(strings.TrimSpace(host))
}
