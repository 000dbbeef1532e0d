package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu_sniper/internal/model"
)

const fixture = `{
  "en_us": {"3080": "5438481700", "3090": "5438481600"},
  "de_de": {"3080": ["5438792300", "5438798100"]},
  "de_at": {"3090": "9999"}
}`

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "ids.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestSingleIDNormalizedToOneElement(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(fixture))
	require.NoError(t, err)

	ids, err := c.Lookup("en_us", "en_us", model.GPU3080)
	require.NoError(t, err)
	assert.False(t, ids.IsList())
	assert.Equal(t, []string{"5438481700"}, ids.IDs())
}

func TestListPassedThroughUnchanged(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(fixture))
	require.NoError(t, err)

	ids, err := c.Lookup("de_de", "de_at", model.GPU3080)
	require.NoError(t, err)
	assert.True(t, ids.IsList())
	assert.Equal(t, []string{"5438792300", "5438798100"}, ids.IDs())
}

func TestLookupFallsBackToRawLocale(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`{"de_at": {"3090": "9999"}}`))
	require.NoError(t, err)

	ids, err := c.Lookup("de_de", "de_at", model.GPU3090)
	require.NoError(t, err)
	assert.Equal(t, []string{"9999"}, ids.IDs())
}

func TestLookupUnknownKeysAreConfigurationMismatch(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(fixture))
	require.NoError(t, err)

	_, err = c.Lookup("ja_jp", "ja_jp", model.GPU3080)
	assert.True(t, errors.Is(err, model.ErrConfigurationMismatch))

	_, err = c.Lookup("en_us", "en_us", model.GPU2060S)
	assert.True(t, errors.Is(err, model.ErrConfigurationMismatch))
}

func TestParseRejectsOtherShapes(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"en_us": {"3080": 5438481700}}`))
	require.Error(t, err)
}

func TestEqualComparesShapeAndIdentity(t *testing.T) {
	t.Parallel()

	assert.True(t, Single("1").Equal(Single("1")))
	assert.False(t, Single("1").Equal(List("1")))
	assert.False(t, List("1", "2").Equal(List("2", "1")))
}

func TestResolveUsesCanonicalLocale(t *testing.T) {
	t.Parallel()

	p := writeCatalog(t, t.TempDir(), fixture)
	ids, err := Resolve(NewSource(p), "DE_AT", model.GPU3080)
	require.NoError(t, err)
	assert.Equal(t, []string{"5438792300", "5438798100"}, ids.IDs())
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	t.Parallel()

	ids, err := Resolve(NewSource(""), "en_us", model.GPU3080)
	require.NoError(t, err)
	assert.Len(t, ids.IDs(), 1)
}

func TestWatcherDetectsShapeChange(t *testing.T) {
	t.Parallel()

	p := writeCatalog(t, t.TempDir(), `{"en_us": {"3080": "1"}}`)
	src := NewSource(p)
	initial, err := Resolve(src, "en_us", model.GPU3080)
	require.NoError(t, err)

	w := NewWatcher(src, 5*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Wait(ctx, "en_us", model.GPU3080, initial) }()

	require.NoError(t, os.WriteFile(p, []byte(`{"en_us": {"3080": ["1"]}}`), 0o644))
	assert.ErrorIs(t, <-done, ErrCatalogChanged)
}

func TestWatcherIgnoresUnchangedAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	p := writeCatalog(t, t.TempDir(), fixture)
	src := NewSource(p)
	initial, err := Resolve(src, "en_us", model.GPU3080)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = NewWatcher(src, 5*time.Millisecond, nil).Wait(ctx, "en_us", model.GPU3080, initial)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
