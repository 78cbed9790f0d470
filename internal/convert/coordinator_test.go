package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/container"
)

type sliceSource struct {
	items []models.ConvertParams
	err   error
}

func (s *sliceSource) Articles(ctx context.Context, yield func(models.ConvertParams) error) error {
	for _, p := range s.items {
		if err := yield(p); err != nil {
			return err
		}
	}
	return s.err
}

// blockingSource yields its items and then waits for cancellation.
type blockingSource struct {
	items   []models.ConvertParams
	yielded chan struct{}
}

func (s *blockingSource) Articles(ctx context.Context, yield func(models.ConvertParams) error) error {
	for _, p := range s.items {
		if err := yield(p); err != nil {
			return err
		}
	}
	close(s.yielded)
	<-ctx.Done()
	return ctx.Err()
}

type memWriter struct {
	mu      sync.Mutex
	entries map[string][]byte
	types   map[string]string
	adds    int
	failAt  int
}

func newMemWriter() *memWriter {
	return &memWriter{entries: map[string][]byte{}, types: map[string]string{}}
}

func (w *memWriter) Add(data []byte, contentType string, keys ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.adds++
	if w.failAt > 0 && w.adds == w.failAt {
		return errors.New("disk full")
	}
	for _, k := range keys {
		w.entries[k] = data
		w.types[k] = contentType
	}
	return nil
}

func (w *memWriter) Tag(name, value string) error { return nil }

func article(title string, text *string, encoding string, aliases ...string) models.ConvertParams {
	return models.ConvertParams{
		Title:       title,
		Aliases:     aliases,
		Text:        text,
		ArticlePath: "/wiki/",
		Encoding:    encoding,
	}
}

func TestRunFaultIsolation(t *testing.T) {
	src := &sliceSource{items: []models.ConvertParams{
		article("A", models.StringPtr("<p>a</p>"), "utf-8", "A1"),
		article("Broken", models.StringPtr("<p>b</p>"), "no-such-charset"),
		article("C", models.StringPtr("<p>c</p>"), "utf-8"),
		article("Missing", nil, "utf-8"),
		article("D", models.StringPtr("<p>d</p>"), "utf-8"),
	}}
	w := newMemWriter()
	var out bytes.Buffer
	metrics := NewMetrics()

	c := &Coordinator{Workers: 3, BatchSize: 2, ContentType: "text/html;charset=utf-8", Out: &out, Metrics: metrics}
	stats, err := c.Run(context.Background(), src, w)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Stored)
	assert.Equal(t, 1, stats.Empty)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, w.adds)
	for _, key := range []string{"A", "A1", "C", "D"} {
		assert.Contains(t, w.entries, key)
		assert.Equal(t, "text/html;charset=utf-8", w.types[key])
	}
	assert.NotContains(t, w.entries, "Broken")
	assert.NotContains(t, w.entries, "Missing")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Contains(t, lines, "F Broken")
	assert.Contains(t, lines, "E Missing")
	assert.Contains(t, lines, fmt.Sprintf("S C (%d)", len(w.entries["C"])))

	metricsFile := filepath.Join(t.TempDir(), "mw2dict.prom")
	require.NoError(t, metrics.WriteTextfile(metricsFile))
	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `mw2dict_articles_total{status="stored"} 3`)
	assert.Contains(t, text, `mw2dict_articles_total{status="empty"} 1`)
	assert.Contains(t, text, `mw2dict_articles_total{status="failed"} 1`)
	assert.Contains(t, text, fmt.Sprintf("mw2dict_article_bytes_total %d", stats.Bytes))
	assert.Contains(t, text, "mw2dict_conversion_seconds_count 5")
}

func TestRunWriterFailure(t *testing.T) {
	var items []models.ConvertParams
	for i := 0; i < 50; i++ {
		items = append(items, article(fmt.Sprintf("T%d", i), models.StringPtr("<p>x</p>"), "utf-8"))
	}
	w := newMemWriter()
	w.failAt = 2

	c := &Coordinator{Workers: 4, BatchSize: 4}
	stats, err := c.Run(context.Background(), &sliceSource{items: items}, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, stats.Stored)
}

func TestRunCancelled(t *testing.T) {
	src := &blockingSource{
		items:   []models.ConvertParams{article("A", models.StringPtr("<p>a</p>"), "utf-8")},
		yielded: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-src.yielded
		cancel()
	}()

	c := &Coordinator{Workers: 2}
	_, err := c.Run(ctx, src, newMemWriter())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSourceFailure(t *testing.T) {
	src := &sliceSource{
		items: []models.ConvertParams{article("A", models.StringPtr("<p>a</p>"), "utf-8")},
		err:   errors.New("truncated archive"),
	}
	c := &Coordinator{Workers: 1}
	_, err := c.Run(context.Background(), src, newMemWriter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated archive")
}

func TestRunInvalidFilter(t *testing.T) {
	c := &Coordinator{Workers: 1, Filters: []string{"div["}}
	_, err := c.Run(context.Background(), &sliceSource{}, newMemWriter())
	require.Error(t, err)
}

func TestRunIntoContainer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.dict")
	out, err := container.Create(path, container.Options{WorkDir: dir})
	require.NoError(t, err)

	src := &sliceSource{items: []models.ConvertParams{
		article("Alpha", models.StringPtr(`<p><a href="/wiki/Beta">b</a></p>`), "utf-8", "Alpha#Intro"),
		article("Beta", models.StringPtr("<p>beta</p>"), "utf-8"),
	}}
	c := &Coordinator{Workers: 2, ContentType: "text/html;charset=utf-8"}
	stats, err := c.Run(context.Background(), src, out)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Stored)
	require.NoError(t, out.Finalize())

	r, err := container.Open(path)
	require.NoError(t, err)
	defer r.Close()

	keys, err := r.Keys(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Alpha#Intro", "Beta"}, keys)

	item, err := r.Get("Alpha")
	require.NoError(t, err)
	assert.Contains(t, string(item.Data), `<a href="Beta">b</a>`)
}

func TestRenderSummary(t *testing.T) {
	s := RenderSummary("out.dict", Stats{Stored: 1234, Empty: 2, Failed: 1, Bytes: 2048})
	assert.Contains(t, s, "out.dict")
	assert.Contains(t, s, "1,234")
	assert.Contains(t, s, "2.0 kB")
}
