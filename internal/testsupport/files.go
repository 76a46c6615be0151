package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRecipe = "[output]\nprocess: ffmpeg\nenc args: H264 CPU\ncontainer: .mp4\n"

// WriteRecipe writes a minimal smoothie recipe to path and returns it.
func WriteRecipe(t testing.TB, path string) string {
	t.Helper()
	writeFile(t, path, []byte(sampleRecipe))
	return path
}

// WriteMedia creates a small placeholder video named name inside dir.
func WriteMedia(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	writeFile(t, path, []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'})
	return path
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
