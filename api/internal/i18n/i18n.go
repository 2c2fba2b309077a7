// Package i18n looks up user-facing strings by key. Unknown keys fall back to
// the default language and finally to the key itself.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

type Bundle struct {
	dict      map[string]map[string]string
	fallback  string
	supported map[string]struct{}
}

// Default loads the embedded en and hi locales with English as fallback.
func Default() *Bundle {
	b, err := Load(localesFS, "en", []string{"en", "hi"})
	if err != nil {
		panic(err)
	}
	return b
}

// Load reads <lang>.json for every supported language from fsys (under
// locales/). Only the fallback locale is mandatory.
func Load(fsys fs.FS, fallback string, supported []string) (*Bundle, error) {
	b := &Bundle{
		dict:      map[string]map[string]string{},
		fallback:  fallback,
		supported: map[string]struct{}{},
	}
	for _, l := range supported {
		b.supported[l] = struct{}{}
		raw, err := fs.ReadFile(fsys, "locales/"+l+".json")
		if err != nil {
			if l == fallback {
				return nil, fmt.Errorf("load locale %s: %w", l, err)
			}
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", l, err)
		}
		b.dict[l] = m
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s not loaded", fallback)
	}
	return b, nil
}

func (b *Bundle) Supported() []string {
	out := make([]string, 0, len(b.supported))
	for k := range b.supported {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *Bundle) Fallback() string { return b.fallback }

func (b *Bundle) IsSupported(lang string) bool {
	_, ok := b.supported[lang]
	return ok
}

// T returns translation for key in lang, falling back to default and finally key.
func (b *Bundle) T(lang, key string) string {
	if lang != "" {
		if m, ok := b.dict[lang]; ok {
			if v, ok := m[key]; ok {
				return v
			}
		}
	}
	if m, ok := b.dict[b.fallback]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Tf is T followed by fmt.Sprintf.
func (b *Bundle) Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(b.T(lang, key), args...)
}

// Match picks the supported language for a client code such as "hi-IN",
// or the fallback.
func (b *Bundle) Match(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return b.fallback
	}
	tag, err := language.Parse(code)
	if err != nil {
		return b.fallback
	}
	base, _ := tag.Base()
	if b.IsSupported(base.String()) {
		return base.String()
	}
	return b.fallback
}
