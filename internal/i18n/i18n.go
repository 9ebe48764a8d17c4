// Package i18n resolves dotted translation keys against per-language string tables.
//
// Tables are written as nested YAML and flattened at load time, so a key either resolves to a string
// leaf or is missing. A missing key is rendered as the key itself.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Language is a supported interface language.
type Language string

const (
	English Language = "en"
	Hausa   Language = "ha"
)

// Languages lists supported languages. The first one is the default.
var Languages = []Language{English, Hausa}

// Catalog holds one flattened table per language.
type Catalog struct {
	tables map[Language]map[string]string
}

//go:embed locales/*.yaml
var localesFS embed.FS

var matcher = language.NewMatcher([]language.Tag{language.English, language.MustParse("ha")})

// ParseLanguage validates a language code.
func ParseLanguage(code string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(code)))
	if slices.Contains(Languages, l) {
		return l, true
	}
	return "", false
}

// Match picks the supported language that best fits an Accept-Language header value.
func Match(acceptLanguage string) Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, _ := matcher.Match(tags...)
	return Languages[idx]
}

// Default loads the tables embedded in the binary.
func Default() (Catalog, error) {
	return Load(localesFS, "locales")
}

// Load reads "<lang>.yaml" for every supported language from dir inside fsys.
func Load(fsys fs.FS, dir string) (Catalog, error) {
	c := Catalog{tables: make(map[Language]map[string]string, len(Languages))}
	for _, l := range Languages {
		raw, err := fs.ReadFile(fsys, path.Join(dir, string(l)+".yaml"))
		if err != nil {
			return Catalog{}, fmt.Errorf("failed to read %s table: %w", l, err)
		}
		table, err := parseTable(raw)
		if err != nil {
			return Catalog{}, fmt.Errorf("failed to parse %s table: %w", l, err)
		}
		c.tables[l] = table
	}
	return c, nil
}

// NewCatalog builds a catalog from already nested tables. It is mostly useful in tests.
func NewCatalog(tables map[Language]map[string]any) Catalog {
	c := Catalog{tables: make(map[Language]map[string]string, len(tables))}
	for l, t := range tables {
		flat := make(map[string]string)
		flatten("", t, flat)
		c.tables[l] = flat
	}
	return c
}

func parseTable(raw []byte) (map[string]string, error) {
	var nested map[string]any
	if err := yaml.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	flat := make(map[string]string)
	flatten("", nested, flat)
	return flat, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Lookup returns the string stored at key for lang. The boolean reports whether the key exists, so a
// found empty string is distinguishable from a miss. Unknown languages use the English table.
func (c Catalog) Lookup(lang Language, key string) (string, bool) {
	table, ok := c.tables[lang]
	if !ok {
		table = c.tables[English]
	}
	s, ok := table[key]
	return s, ok
}

// T resolves key for lang and substitutes params. For each parameter only the first "{name}"
// occurrence is replaced; placeholders without a parameter stay as they are and parameters without a
// placeholder are ignored. A missing key resolves to the key itself.
func (c Catalog) T(lang Language, key string, params map[string]string) string {
	s, ok := c.Lookup(lang, key)
	if !ok {
		return key
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		s = strings.Replace(s, "{"+name+"}", params[name], 1)
	}
	return s
}

// Translator binds a catalog to one language, which is what templates and the chat session use.
type Translator struct {
	Catalog  Catalog
	Language Language
}

// T resolves key in the bound language.
func (t Translator) T(key string, params map[string]string) string {
	return t.Catalog.T(t.Language, key, params)
}
