package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Supported key layouts.
const (
	LayoutFlat    = "flat"
	LayoutSharded = "sharded"
)

const maxExtensionLength = 16

// Generator defines the interface for stored-name generation strategies
type Generator interface {
	// GenerateKey derives the stored name of a blob from its record id.
	// Distinct ids always produce distinct keys.
	GenerateKey(id uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FieldName string
	Extension string
}

// New returns the generator for a layout name. An empty layout selects flat.
func New(layout string) (Generator, error) {
	switch strings.ToLower(layout) {
	case "", LayoutFlat:
		return NewFlatGenerator(), nil
	case LayoutSharded:
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported key layout: %s", layout)
	}
}

// FlatGenerator keeps every blob in a single directory:
// file-3f2c...-9a1b.pdf
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	field := "file"
	ext := ""
	if metadata != nil {
		if f := sanitizePathComponent(metadata.FieldName); f != "" {
			field = f
		}
		ext = SanitizeExtension(metadata.Extension)
	}
	return fmt.Sprintf("%s-%s%s", field, id, ext)
}

// ShardedGenerator spreads blobs over Git-style prefix directories:
// 3f/2c4e...9a1b.pdf
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	hex := strings.ReplaceAll(id.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard >= len(hex) {
		shard = 2
	}

	ext := ""
	if metadata != nil {
		ext = SanitizeExtension(metadata.Extension)
	}
	return fmt.Sprintf("%s/%s%s", hex[:shard], hex[shard:], ext)
}

// CustomFuncGenerator allows callers to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(id uuid.UUID, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(id uuid.UUID, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	return g.GenerateFunc(id, metadata)
}

// SanitizeExtension lower-cases ext, keeps only [a-z0-9.] and caps its length.
// The result is either empty or starts with a dot.
func SanitizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimLeft(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".")
	if clean == "" {
		return ""
	}
	if len(clean) > maxExtensionLength {
		clean = clean[:maxExtensionLength]
	}
	return "." + clean
}

func sanitizePathComponent(component string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(component) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-', r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
