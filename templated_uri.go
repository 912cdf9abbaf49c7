package uxios

import (
	"net/url"
	"strings"
)

// TemplatedURI is a URL containing {name} placeholders, such as
// "https://api.example.com/users/{id}/posts".
type TemplatedURI string

// Parts returns the unique placeholder names in order of appearance.
func (t TemplatedURI) Parts() []string {
	s := unescapeBraces(string(t))
	var names []string
	seen := make(map[string]bool)
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start+1:], '}')
		if end < 0 {
			break
		}
		name := s[start+1 : start+1+end]
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		s = s[start+end+2:]
	}
	return names
}

// Expand replaces placeholders with the escaped first value of the
// parameter of the same name. Placeholders without a parameter are kept.
func (t TemplatedURI) Expand(params *Params) string {
	s := unescapeBraces(string(t))
	for _, name := range t.Parts() {
		if !params.Has(name) {
			continue
		}
		s = strings.ReplaceAll(s, "{"+name+"}", url.PathEscape(params.Get(name)))
	}
	return s
}

// ExpandConsuming is Expand that also removes every used parameter from
// params, so it does not reappear in the query string.
func (t TemplatedURI) ExpandConsuming(params *Params) string {
	s := t.Expand(params)
	for _, name := range t.Parts() {
		params.Del(name)
	}
	return s
}

func unescapeBraces(s string) string {
	if !strings.Contains(s, "%7") {
		return s
	}
	r := strings.NewReplacer("%7B", "{", "%7b", "{", "%7D", "}", "%7d", "}")
	return r.Replace(s)
}
