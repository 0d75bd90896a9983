package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine answers with the image bytes as text; later images answer
// faster so completion order is the reverse of attempt order.
type fakeEngine struct {
	fail map[string]bool
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, img []byte, cfg Config) (string, error) {
	s := string(img)
	if f.fail[s] {
		return "", errors.New("boom")
	}
	if s == "panic" {
		panic("engine crashed")
	}
	time.Sleep(time.Duration(10-len(s)%10) * time.Millisecond)
	return s + "@" + cfg.String(), nil
}

type fileEngine struct {
	fakeEngine
	paths []string
}

func (f *fileEngine) RecognizeFile(_ context.Context, path string, _ Config) (string, error) {
	f.paths = append(f.paths, path)
	return "from file", nil
}

func TestRunner_KeepsAttemptOrder(t *testing.T) {
	r, err := NewRunner(&fakeEngine{}, 4)
	require.NoError(t, err)
	defer r.Release()

	var attempts []Attempt
	for _, s := range []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"} {
		attempts = append(attempts, Attempt{Variant: s, Image: []byte(s), Config: Config{PSM: 6}})
	}
	got := r.Run(context.Background(), attempts)
	require.Len(t, got, len(attempts))
	for i, a := range attempts {
		assert.Equal(t, a.Source(), got[i].Source)
		assert.True(t, strings.HasPrefix(got[i].Text, string(a.Image)+"@"))
	}
}

func TestRunner_DropsFailuresAndEmptyText(t *testing.T) {
	r, err := NewRunner(&fakeEngine{fail: map[string]bool{"bad": true}}, 2)
	require.NoError(t, err)
	defer r.Release()

	got := r.Run(context.Background(), []Attempt{
		{Variant: "gray", Image: []byte("ok")},
		{Variant: "otsu", Image: []byte("bad")},
		{Variant: "adaptive", Image: []byte("panic")},
		{Variant: "blur", Image: []byte("")},
		{Variant: "contrast", Image: []byte("ok2")},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "gray/default", got[0].Source)
	// empty image still yields "@default"
	assert.Equal(t, "blur/default", got[1].Source)
	assert.Equal(t, "contrast/default", got[2].Source)
}

func TestRunner_OriginalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("disk"), 0o600))

	r, err := NewRunner(&fakeEngine{}, 1)
	require.NoError(t, err)
	defer r.Release()
	got := r.Run(context.Background(), []Attempt{{Variant: "original", Path: path}})
	require.Len(t, got, 1)
	assert.Equal(t, "disk@default", got[0].Text)

	fe := &fileEngine{}
	r2, err := NewRunner(fe, 1)
	require.NoError(t, err)
	defer r2.Release()
	got = r2.Run(context.Background(), []Attempt{{Variant: "original", Path: path}})
	require.Len(t, got, 1)
	assert.Equal(t, "from file", got[0].Text)
	assert.Equal(t, []string{path}, fe.paths)
}

func TestNewRunner_Errors(t *testing.T) {
	_, err := NewRunner(nil, 2)
	assert.Error(t, err)
	_, err = NewRunner(&fakeEngine{}, 0)
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	variants := []Variant{{Name: "gray", Data: []byte("g")}, {Name: "otsu", Data: []byte("o")}}
	configs := []Config{{PSM: 6}, {PSM: 11}}

	got := Plan(variants, configs, "/tmp/x.png")
	require.Len(t, got, 5)
	var sources []string
	for _, a := range got {
		sources = append(sources, a.Source())
	}
	assert.Equal(t, []string{"gray/--psm 6", "gray/--psm 11", "otsu/--psm 6", "otsu/--psm 11", "original/default"}, sources)
	assert.Equal(t, "/tmp/x.png", got[4].Path)

	assert.Len(t, Plan(variants, configs, ""), 4)
}

func TestConfig(t *testing.T) {
	cfgs := DefaultConfigs()
	require.Len(t, cfgs, 6)
	assert.Equal(t, "--psm 6 -c tessedit_char_whitelist="+reportWhitelist, cfgs[0].String())
	assert.Equal(t, "--psm 13", cfgs[5].String())
	assert.True(t, Config{}.Default())
	assert.False(t, cfgs[2].Default())
}

type cloudEngine struct{ fakeEngine }

func (cloudEngine) Configs() []Config { return []Config{{}} }

func TestConfigsFor(t *testing.T) {
	assert.Equal(t, DefaultConfigs(), ConfigsFor(&fakeEngine{}))
	assert.Equal(t, []Config{{}}, ConfigsFor(&cloudEngine{}))
}

func TestWithTempImage(t *testing.T) {
	var seen string
	err := WithTempImage([]byte("png"), ".png", func(path string) error {
		seen = path
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "png", string(b))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(seen, ".png"))
	_, err = os.Stat(seen)
	assert.True(t, os.IsNotExist(err))

	boom := errors.New("boom")
	err = WithTempImage([]byte("x"), ".jpg", func(path string) error {
		seen = path
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = os.Stat(seen)
	assert.True(t, os.IsNotExist(err))

	assert.Panics(t, func() {
		_ = WithTempImage([]byte("x"), ".jpg", func(path string) error {
			seen = path
			panic("fault")
		})
	})
	_, err = os.Stat(seen)
	assert.True(t, os.IsNotExist(err))
}
