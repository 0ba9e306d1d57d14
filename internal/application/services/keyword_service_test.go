package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NormalizesAndDeduplicates(t *testing.T) {
	e := NewKeywordExtractor(0)

	assert.Equal(t, []string{"数据结构", "算法"}, e.Extract("  数据结构   算法 数据结构 "))
	assert.Equal(t, []string{"linux", "shell"}, e.Extract("Linux SHELL linux"))
	assert.Empty(t, e.Extract("   "))
}

func TestExtract_CorrectsTypos(t *testing.T) {
	e := NewKeywordExtractor(0)

	assert.Equal(t, []string{"python", "数据结构"}, e.Extract("Pyhton 数剧结构"))
	// a typo and its correction collapse into one keyword
	assert.Equal(t, []string{"python"}, e.Extract("python pyhton"))
}

func TestExtract_CapsKeywordCount(t *testing.T) {
	e := NewKeywordExtractor(0)

	kws := e.Extract("a b c d e f g h i j k l m")
	assert.Len(t, kws, DefaultMaxKeywords)
	assert.Equal(t, "a", kws[0])
	assert.Equal(t, "j", kws[9])

	assert.Len(t, NewKeywordExtractor(3).Extract("a b c d"), 3)
}

func TestNewKeywordExtractor_ClampsConfiguredMax(t *testing.T) {
	// a larger configured limit cannot widen the query past the default
	kws := NewKeywordExtractor(50).Extract("a b c d e f g h i j k l")
	assert.Len(t, kws, DefaultMaxKeywords)
	assert.Equal(t, "j", kws[len(kws)-1])
}

func TestExtract_SynonymsDisabledByDefault(t *testing.T) {
	e := NewKeywordExtractor(0)
	assert.Equal(t, []string{"js"}, e.Extract("js"))

	e.WithSynonyms(true)
	assert.Equal(t, []string{"js", "javascript"}, e.Extract("js"))
	assert.Equal(t, []string{"js", "javascript"}, e.Extract("js javascript"))
}

func TestLoadDictionary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dictionary.yaml")
	content := `
typos:
  Golnag: go
  计网: 计算机网络
synonyms:
  go:
    - Golang
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	e := NewKeywordExtractor(0)
	require.NoError(t, e.LoadDictionary(path))

	assert.Equal(t, []string{"go", "计算机网络"}, e.Extract("golnag 计网"))
	assert.Equal(t, []string{"go", "golang"}, e.WithSynonyms(true).Extract("golnag"))
	// built-in entries survive the merge
	assert.Equal(t, []string{"python"}, e.Extract("pyhton"))
}

func TestLoadDictionary_Errors(t *testing.T) {
	e := NewKeywordExtractor(0)
	assert.Error(t, e.LoadDictionary(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("typos: [unclosed"), 0o644))
	assert.Error(t, e.LoadDictionary(path))
}
