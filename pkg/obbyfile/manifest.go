package obbyfile

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// ManifestName is the entry that carries the plugin manifest.
const ManifestName = "plugin.json"

// Manifest holds the commonly used fields of plugin.json.
type Manifest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Description   string `json:"description,omitempty"`
	Author        string `json:"author,omitempty"`
	MinAppVersion string `json:"minAppVersion,omitempty"`
}

// ExtractPluginJSON returns the manifest entry as text. A size mismatch
// warning from ExtractEntry is passed through with the text.
func (r *Reader) ExtractPluginJSON() (string, error) {
	data, err := r.ExtractEntry(ManifestName)
	if err != nil && !IsWarning(err) {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrEncoding
	}
	return string(data), err
}

// PluginManifest decodes the manifest entry.
func (r *Reader) PluginManifest() (*Manifest, error) {
	text, err := r.ExtractPluginJSON()
	if err != nil && !IsWarning(err) {
		return nil, err
	}
	m := &Manifest{}
	if jerr := json.Unmarshal([]byte(text), m); jerr != nil {
		return nil, fmt.Errorf("decoding %s: %w", ManifestName, jerr)
	}
	return m, err
}

// ExtractPluginJSONFromBytes opens buf and returns its manifest as text.
func ExtractPluginJSONFromBytes(buf []byte, opts ...Option) (string, error) {
	r, err := Open(buf, opts...)
	if err != nil {
		return "", err
	}
	return r.ExtractPluginJSON()
}
