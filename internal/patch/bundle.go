package patch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// LoadBundle reads a patch bundle from file. Bundles may be plain
// (.patch/.diff) or compressed with gzip (.gz), xz (.xz) or zstd (.zst).
func LoadBundle(file string, targets ...string) (*Set, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	diff, err := Decode(file, f)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", filepath.Base(file), err)
	}
	return Parse(bundleName(file), diff, targets...)
}

// Decode reads r, decompressing it according to the extension of name.
func Decode(name string, r io.Reader) ([]byte, error) {
	switch filepath.Ext(name) {
	case ".gz":
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case ".xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.ReadAll(xr)
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return io.ReadAll(r)
}

// bundleName turns "dir/bow.patch.xz" into "bow".
func bundleName(file string) string {
	name := filepath.Base(file)
	for _, ext := range []string{".gz", ".xz", ".zst", ".patch", ".diff"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
