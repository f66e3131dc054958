// Package definition loads declarative symbol descriptions from YAML or TOML
// and builds them into variable trees.
//
// A document names a symbol and lists its fields; each field carries one
// variable tree. Relations refer to other variables of the same symbol by
// name. Variable IDs are derived from symbol, field and variable names, so a
// Memory persisted under one load of a document matches the next.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var (
	ErrUnknownFormat = errors.New("definition: unknown format")
	ErrInvalid       = errors.New("definition: invalid document")
)

var validate = validator.New()

// Document is the top-level description of one symbol.
type Document struct {
	Symbol string     `yaml:"symbol" toml:"symbol" validate:"required"`
	Fields []FieldDoc `yaml:"fields" toml:"fields" validate:"required,min=1,dive"`
}

type FieldDoc struct {
	Name   string `yaml:"name" toml:"name" validate:"required"`
	Domain VarDoc `yaml:"domain" toml:"domain"`
}

// VarDoc describes one variable. Which fields apply depends on Kind.
type VarDoc struct {
	Kind string `yaml:"kind" toml:"kind" validate:"required,oneof=data size value hash hmac crc32 checksum alt agg repeat"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty"`
	SVAS string `yaml:"svas,omitempty" toml:"svas,omitempty" validate:"omitempty,oneof=ephemeral constant persistent volatile"`

	Type  *TypeDoc `yaml:"type,omitempty" toml:"type,omitempty"`
	Value string   `yaml:"value,omitempty" toml:"value,omitempty"`

	// relations
	Targets   []string `yaml:"targets,omitempty" toml:"targets,omitempty"`
	Algorithm string   `yaml:"algorithm,omitempty" toml:"algorithm,omitempty"`
	Key       string   `yaml:"key,omitempty" toml:"key,omitempty"`
	Table     string   `yaml:"table,omitempty" toml:"table,omitempty" validate:"omitempty,oneof=ieee castagnoli koopman"`
	Factor    float64  `yaml:"factor,omitempty" toml:"factor,omitempty" validate:"gte=0"`
	Offset    int      `yaml:"offset,omitempty" toml:"offset,omitempty"`

	// alt, agg
	Children []VarDoc `yaml:"children,omitempty" toml:"children,omitempty" validate:"dive"`

	// repeat
	Child     *VarDoc `yaml:"child,omitempty" toml:"child,omitempty"`
	Min       int     `yaml:"min,omitempty" toml:"min,omitempty" validate:"gte=0"`
	Max       int     `yaml:"max,omitempty" toml:"max,omitempty" validate:"gte=0"`
	Delimiter string  `yaml:"delimiter,omitempty" toml:"delimiter,omitempty"`
	// Count names the variable whose integer value is the iteration count.
	Count string `yaml:"count,omitempty" toml:"count,omitempty"`
}

// TypeDoc describes a datatype. Sizes are bytes for raw, characters for
// string and bits for integer and bits; Size sets both bounds.
type TypeDoc struct {
	Kind     string `yaml:"kind" toml:"kind" validate:"required,oneof=raw string integer bits"`
	Size     int    `yaml:"size,omitempty" toml:"size,omitempty" validate:"gte=0"`
	Min      int    `yaml:"min,omitempty" toml:"min,omitempty" validate:"gte=0"`
	Max      int    `yaml:"max,omitempty" toml:"max,omitempty" validate:"gte=-1"`
	Signed   bool   `yaml:"signed,omitempty" toml:"signed,omitempty"`
	Endian   string `yaml:"endian,omitempty" toml:"endian,omitempty" validate:"omitempty,oneof=big little"`
	Encoding string `yaml:"encoding,omitempty" toml:"encoding,omitempty" validate:"omitempty,oneof=ascii utf-8"`
	Lower    *int64 `yaml:"lower,omitempty" toml:"lower,omitempty"`
	Upper    *int64 `yaml:"upper,omitempty" toml:"upper,omitempty"`
}

// Load reads a document, picking the format from the file extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition load failed (%s): %w", path, err)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("definition parse failed (%s): %w", path, err)
	}
	return doc, nil
}

func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Parse decodes and validates a document. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
