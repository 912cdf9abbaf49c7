package uxios

import (
	"net/url"
	"strings"
)

// Params is an ordered query parameter multimap. Keys are unique and keep
// their first insertion position; each key holds its values in order.
// The zero value is ready to use. A nil *Params reads as empty.
type Params struct {
	keys   []string
	values map[string][]string
}

// NewParams returns an empty parameter set, optionally seeded with
// alternating key/value pairs. A trailing key without value is ignored.
func NewParams(pairs ...string) *Params {
	p := &Params{}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Add(pairs[i], pairs[i+1])
	}
	return p
}

// Add appends value to key.
func (p *Params) Add(key, value string) *Params {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
	return p
}

// Set replaces the values of key.
func (p *Params) Set(key string, values ...string) *Params {
	p.Del(key)
	for _, v := range values {
		p.Add(key, v)
	}
	return p
}

// Get returns the first value of key, or "".
func (p *Params) Get(key string) string {
	if p == nil {
		return ""
	}
	if vs := p.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns a copy of the values of key.
func (p *Params) Values(key string) []string {
	if p == nil {
		return nil
	}
	vs := p.values[key]
	if vs == nil {
		return nil
	}
	return append([]string(nil), vs...)
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p.values[key]
	return ok
}

// Del removes key.
func (p *Params) Del(key string) {
	if p == nil || !p.Has(key) {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Consume returns the first value of key and removes the key. Used when a
// parameter is absorbed into another part of the URL, such as a template.
func (p *Params) Consume(key string) (string, bool) {
	if !p.Has(key) {
		return "", false
	}
	v := p.Get(key)
	p.Del(key)
	return v, true
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Len returns the number of distinct keys.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a deep copy. Cloning nil yields an empty set.
func (p *Params) Clone() *Params {
	out := &Params{}
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		for _, v := range p.values[k] {
			out.Add(k, v)
		}
	}
	return out
}

// Merge returns a new set holding p's entries followed by other's. Values of
// keys present in both are kept side by side.
func (p *Params) Merge(other *Params) *Params {
	out := p.Clone()
	if other == nil {
		return out
	}
	for _, k := range other.keys {
		for _, v := range other.values[k] {
			out.Add(k, v)
		}
	}
	return out
}

// Encode renders the set as a query string. Spaces become '+' and a key
// ending in "[]" keeps its brackets unescaped.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range p.keys {
		key := k
		array := strings.HasSuffix(key, "[]")
		if array {
			key = key[:len(key)-2]
		}
		encodedKey := url.QueryEscape(key)
		if array {
			encodedKey += "[]"
		}
		for _, v := range p.values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(encodedKey)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// String implements fmt.Stringer.
func (p *Params) String() string {
	return p.Encode()
}

// ParseParams decodes a query string. A leading '?' is skipped, "key[]" is
// folded into "key" and a key without '=' gets an empty value.
func ParseParams(query string) (*Params, error) {
	p := &Params{}
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return p, nil
	}
	for _, segment := range strings.Split(query, "&") {
		if segment == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(segment, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, err
		}
		p.Add(strings.TrimSuffix(key, "[]"), value)
	}
	return p, nil
}
