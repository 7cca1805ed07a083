package objectkey

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()
	id := uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

	tests := []struct {
		name     string
		metadata *KeyMetadata
		expected string
	}{
		{
			name:     "without metadata",
			metadata: nil,
			expected: "file-987fcdeb-51a2-43d1-9f12-345678901234",
		},
		{
			name:     "with extension",
			metadata: &KeyMetadata{FieldName: "file", Extension: ".pdf"},
			expected: "file-987fcdeb-51a2-43d1-9f12-345678901234.pdf",
		},
		{
			name:     "custom field name",
			metadata: &KeyMetadata{FieldName: "Exam-Paper", Extension: ".PDF"},
			expected: "exam_paper-987fcdeb-51a2-43d1-9f12-345678901234.pdf",
		},
		{
			name:     "traversal in field and extension",
			metadata: &KeyMetadata{FieldName: "../..", Extension: "./../x"},
			expected: "file-987fcdeb-51a2-43d1-9f12-345678901234.x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gen.GenerateKey(id, tt.metadata))
		})
	}
}

func TestShardedGenerator(t *testing.T) {
	gen := NewShardedGenerator()
	id := uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

	key := gen.GenerateKey(id, &KeyMetadata{Extension: ".docx"})
	assert.Equal(t, "98/7fcdeb51a243d19f12345678901234.docx", key)

	key = gen.GenerateKey(id, nil)
	assert.Equal(t, "98/7fcdeb51a243d19f12345678901234", key)
}

func TestGeneratorsProduceDistinctKeys(t *testing.T) {
	for _, gen := range []Generator{NewFlatGenerator(), NewShardedGenerator()} {
		seen := make(map[string]struct{})
		for i := 0; i < 1000; i++ {
			key := gen.GenerateKey(uuid.New(), &KeyMetadata{FieldName: "file", Extension: ".pdf"})
			_, dup := seen[key]
			require.False(t, dup, "duplicate key %s", key)
			seen[key] = struct{}{}
		}
	}
}

func TestSanitizeExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{".pdf", ".pdf"},
		{"PDF", ".pdf"},
		{".tar.gz", ".tar.gz"},
		{"./../etc", ".etc"},
		{".p d/f", ".pdf"},
		{"." + strings.Repeat("a", 40), "." + strings.Repeat("a", maxExtensionLength)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeExtension(tt.in), "input %q", tt.in)
	}
}

func TestNew(t *testing.T) {
	gen, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &FlatGenerator{}, gen)

	gen, err = New("SHARDED")
	require.NoError(t, err)
	assert.IsType(t, &ShardedGenerator{}, gen)

	_, err = New("nested")
	assert.Error(t, err)
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(id uuid.UUID, metadata *KeyMetadata) string {
		return "custom/" + id.String()
	})
	id := uuid.New()
	assert.Equal(t, "custom/"+id.String(), gen.GenerateKey(id, nil))
}
