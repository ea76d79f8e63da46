// Package document loads flowcharts from TOML and JSON documents.
//
// A document declares one flowchart:
//
//	name = "Intro"
//
//	[[variables]]
//	key   = "score"
//	type  = "integer"
//	scope = "public"
//	value = 0
//
//	[[blocks]]
//	name = "Start"
//	triggers = [{ type = "started" }]
//
//	[[blocks.commands]]
//	type = "Say"
//	text = "Score: {$score}"
//
// Each command is a table holding its "type", an optional "indent" and
// "enabled" flag, and the parameters of that type. When no command of a
// block sets "indent", indents are computed from If/While/End nesting.
package document

import (
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
)

// Format is a document serialization.
type Format int

const (
	FormatUnknown Format = iota
	FormatTOML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Extensions lists the file extensions recognised as documents.
var Extensions = []string{".toml", ".json"}

// FormatOf returns the format for a file name, ignoring case.
func FormatOf(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// Document is one flowchart as authored.
type Document struct {
	Name      string         `toml:"name" json:"name"`
	Variables []VariableSpec `toml:"variables" json:"variables"`
	Blocks    []BlockSpec    `toml:"blocks" json:"blocks"`

	// Source is the file the document was read from.
	Source string `toml:"-" json:"-"`
}

type VariableSpec struct {
	Key   string `toml:"key" json:"key"`
	Type  string `toml:"type" json:"type"`
	Scope string `toml:"scope" json:"scope"`
	Value any    `toml:"value" json:"value"`
}

type BlockSpec struct {
	Name     string        `toml:"name" json:"name"`
	Triggers []TriggerSpec `toml:"triggers" json:"triggers"`
	Commands []CommandSpec `toml:"commands" json:"commands"`
}

type TriggerSpec struct {
	Type       string `toml:"type" json:"type"`
	Name       string `toml:"name" json:"name"`
	StartIndex int    `toml:"start_index" json:"start_index"`
}

// CommandSpec holds the fields of one command table.
type CommandSpec map[string]any

// Type returns the command type name.
func (c CommandSpec) Type() string {
	s, _ := c["type"].(string)
	return s
}

// Parse decodes data in the given format. source is kept for error messages.
func Parse(data []byte, format Format, source string) (*Document, error) {
	var doc Document
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported document format", source)
	}
	doc.Source = source
	if doc.Name == "" {
		base := path.Base(strings.ReplaceAll(source, "\\", "/"))
		doc.Name = strings.TrimSuffix(base, path.Ext(base))
	}
	return &doc, nil
}
