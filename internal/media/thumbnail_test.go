package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"giffer/internal/filesystem"
	"giffer/internal/mediatypes"
)

func writeGIF(t *testing.T, path string, w, h int) {
	t.Helper()

	palette := color.Palette{color.Black, color.White}
	frames := make([]*image.Paletted, 2)
	for i := range frames {
		img := image.NewPaletted(image.Rect(0, 0, w, h), palette)
		for x := 0; x < w; x++ {
			img.SetColorIndex(x, (x+i)%h, 1)
		}
		frames[i] = img
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &gif.GIF{Image: frames, Delay: []int{10, 10}}); err != nil {
		t.Fatal(err)
	}
}

func newTestGenerator(t *testing.T, size int) (*ThumbnailGenerator, *filesystem.Library) {
	t.Helper()
	lib, err := filesystem.NewLibrary(t.TempDir(), mediatypes.NewFilter(nil))
	if err != nil {
		t.Fatal(err)
	}
	gen, err := NewThumbnailGenerator(lib, size)
	if err != nil {
		t.Fatal(err)
	}
	return gen, lib
}

func TestGetThumbnail_FitsBoundingBox(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 4)
	writeGIF(t, filepath.Join(lib.Root(), "wide.gif"), 800, 400)

	data, err := gen.GetThumbnail("wide.gif")
	if err != nil {
		t.Fatalf("GetThumbnail: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not a JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != ThumbnailSize || b.Dy() != ThumbnailSize/2 {
		t.Errorf("thumbnail size = %dx%d, want %dx%d", b.Dx(), b.Dy(), ThumbnailSize, ThumbnailSize/2)
	}
}

func TestGetThumbnail_CachesUntilFileChanges(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 4)
	path := filepath.Join(lib.Root(), "cat.gif")
	writeGIF(t, path, 50, 50)

	first, err := gen.GetThumbnail("cat.gif")
	if err != nil {
		t.Fatal(err)
	}
	second, err := gen.GetThumbnail("cat.gif")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) || gen.Len() != 1 {
		t.Errorf("expected cached thumbnail, cache len = %d", gen.Len())
	}

	writeGIF(t, path, 120, 60)
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if _, err := gen.GetThumbnail("cat.gif"); err != nil {
		t.Fatal(err)
	}
	if gen.Len() != 2 {
		t.Errorf("cache len = %d, want 2 after file change", gen.Len())
	}
}

func TestGetThumbnail_LRUEvicts(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 2)
	for _, name := range []string{"a.gif", "b.gif", "c.gif"} {
		writeGIF(t, filepath.Join(lib.Root(), name), 10, 10)
		if _, err := gen.GetThumbnail(name); err != nil {
			t.Fatal(err)
		}
	}
	if gen.Len() != 2 {
		t.Errorf("cache len = %d, want 2", gen.Len())
	}
}

func TestGetThumbnail_Errors(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 2)

	if _, err := gen.GetThumbnail("missing.gif"); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v, want not-exist", err)
	}

	if err := os.WriteFile(filepath.Join(lib.Root(), "broken.gif"), []byte("not a gif"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := gen.GetThumbnail("broken.gif"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("broken file error = %v, want ErrUnsupported", err)
	}

	if _, err := gen.GetThumbnail("../escape.gif"); !errors.Is(err, filesystem.ErrInvalidName) {
		t.Errorf("traversal error = %v, want ErrInvalidName", err)
	}
}

func TestGetThumbnail_Concurrent(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 4)
	writeGIF(t, filepath.Join(lib.Root(), "busy.gif"), 300, 300)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := gen.GetThumbnail("busy.gif"); err != nil {
				t.Errorf("GetThumbnail: %v", err)
			}
		}()
	}
	wg.Wait()

	if gen.Len() != 1 {
		t.Errorf("cache len = %d, want 1", gen.Len())
	}
}

func TestWarm(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 8)
	names := []string{"a.gif", "b.gif", "c.gif"}
	for _, name := range names {
		writeGIF(t, filepath.Join(lib.Root(), name), 40, 20)
	}
	if err := os.WriteFile(filepath.Join(lib.Root(), "broken.gif"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := gen.Warm(context.Background(), append(names, "broken.gif", "missing.gif"), 2)
	if got != len(names) {
		t.Errorf("Warm() = %d, want %d", got, len(names))
	}
	if gen.Len() != len(names) {
		t.Errorf("cache len = %d, want %d", gen.Len(), len(names))
	}
}

func TestWarm_CancelledContext(t *testing.T) {
	t.Parallel()
	gen, lib := newTestGenerator(t, 4)
	writeGIF(t, filepath.Join(lib.Root(), "a.gif"), 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := gen.Warm(ctx, []string{"a.gif"}, 0); got != 0 {
		t.Errorf("Warm() = %d, want 0 after cancel", got)
	}
	if gen.Len() != 0 {
		t.Errorf("cache len = %d, want 0", gen.Len())
	}
}

func TestConstrain(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "within limits", w: 100, h: 50, wantW: 100, wantH: 50},
		{name: "wide over dimension", w: 8192, h: 1024, wantW: 4096, wantH: 512},
		{name: "tall over dimension", w: 1000, h: 8000, wantW: 512, wantH: 4096},
		{name: "over pixels", w: 4000, h: 4000, wantW: 3000, wantH: 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := constrain(tt.w, tt.h, 4096, 9_000_000)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("constrain(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
