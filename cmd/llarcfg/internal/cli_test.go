package internal

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

func TestParseSelections(t *testing.T) {
	tests := []struct {
		name    string
		file    map[string]string
		with    []string
		without []string
		options []string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "empty",
			want: map[string]string{},
		},
		{
			name:    "flags",
			with:    []string{"with-qt", "with-tbb"},
			without: []string{"opencl"},
			options: []string{"video-io=quicktime"},
			want: map[string]string{
				"with-qt":  "true",
				"with-tbb": "true",
				"opencl":   "false",
				"video-io": "quicktime",
			},
		},
		{
			name:    "command line wins over file",
			file:    map[string]string{"with-qt": "true", "cxx11": "true"},
			without: []string{"with-qt"},
			want:    map[string]string{"with-qt": "false", "cxx11": "true"},
		},
		{
			name:    "short names",
			with:    []string{"qt", "tbb"},
			without: []string{"without-ffmpeg", "tests"},
			want: map[string]string{
				"with-qt":     "true",
				"with-tbb":    "true",
				"with-ffmpeg": "false",
				"with-tests":  "false",
			},
		},
		{
			name:    "unknown names pass through",
			with:    []string{"gpu"},
			options: []string{"video-io=qtkit"},
			want:    map[string]string{"gpu": "true", "video-io": "qtkit"},
		},
		{
			name:    "short and full name collide",
			with:    []string{"qt"},
			without: []string{"with-qt"},
			wantErr: true,
		},
		{
			name:    "twice",
			with:    []string{"with-qt"},
			without: []string{"with-qt"},
			wantErr: true,
		},
		{
			name:    "missing value",
			options: []string{"video-io"},
			wantErr: true,
		},
		{
			name:    "empty name",
			options: []string{"=on"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSelections(declaredOptions(), tt.file, tt.with, tt.without, tt.options)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSelections = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseSelections = %v, want %v", got, tt.want)
			}
		})
	}
}

// installTree lays out a prefix holding this build's files, including a
// versioned library link, next to a file some other package installed.
func installTree(t *testing.T) (dir string, files []string) {
	t.Helper()
	dir = t.TempDir()
	contents := map[string]string{
		"include/opencv2/core.hpp":       "// core\n",
		"lib/libopencv_core.2.4.9.dylib": "MACHO",
		"share/other/unrelated.txt":      "not ours",
	}
	for name, data := range contents {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("libopencv_core.2.4.9.dylib", filepath.Join(dir, "lib", "libopencv_core.dylib")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	return dir, []string{
		"include/opencv2/core.hpp",
		"lib/libopencv_core.2.4.9.dylib",
		"lib/libopencv_core.dylib",
	}
}

const libLink = "lib/libopencv_core.dylib"

func checkTar(t *testing.T, r io.Reader, want []string) {
	t.Helper()
	tr := tar.NewReader(r)
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, h.Name)
		if h.Name == libLink && (h.Typeflag != tar.TypeSymlink || h.Linkname != "libopencv_core.2.4.9.dylib") {
			t.Errorf("%s: type %c link %q, want symlink", h.Name, h.Typeflag, h.Linkname)
		}
	}
	sort.Strings(names)
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("tar entries = %v, want %v", names, want)
	}
}

func TestOutputResult(t *testing.T) {
	src, files := installTree(t)
	out := t.TempDir()

	t.Run("dir", func(t *testing.T) {
		dest := filepath.Join(out, "copy")
		if err := outputResult(src, files, dest); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(dest, "lib", "libopencv_core.2.4.9.dylib"))
		if err != nil || string(data) != "MACHO" {
			t.Fatalf("copied file = %q, %v", data, err)
		}
		link, err := os.Readlink(filepath.Join(dest, filepath.FromSlash(libLink)))
		if err != nil || link != "libopencv_core.2.4.9.dylib" {
			t.Fatalf("link = %q, %v", link, err)
		}
		if _, err := os.Stat(filepath.Join(dest, "share")); !os.IsNotExist(err) {
			t.Fatalf("files of other packages copied: %v", err)
		}
	})

	t.Run("zip", func(t *testing.T) {
		dest := filepath.Join(out, "opencv.zip")
		if err := outputResult(src, files, dest); err != nil {
			t.Fatal(err)
		}
		zr, err := zip.OpenReader(dest)
		if err != nil {
			t.Fatal(err)
		}
		defer zr.Close()
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
			if f.Name != libLink {
				continue
			}
			if f.Mode()&os.ModeSymlink == 0 {
				t.Errorf("%s: mode %v, want symlink", f.Name, f.Mode())
			}
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			target, err := io.ReadAll(rc)
			rc.Close()
			if err != nil || string(target) != "libopencv_core.2.4.9.dylib" {
				t.Errorf("%s: target %q, %v", f.Name, target, err)
			}
		}
		sort.Strings(names)
		if !reflect.DeepEqual(names, files) {
			t.Fatalf("zip entries = %v, want %v", names, files)
		}
	})

	t.Run("tar.gz", func(t *testing.T) {
		dest := filepath.Join(out, "opencv.tar.gz")
		if err := outputResult(src, files, dest); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(dest)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		zr, err := pgzip.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		checkTar(t, zr, files)
	})

	t.Run("tar.xz", func(t *testing.T) {
		dest := filepath.Join(out, "opencv.tar.xz")
		if err := outputResult(src, files, dest); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(dest)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		xr, err := xz.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		checkTar(t, xr, files)
	})

	t.Run("nothing recorded", func(t *testing.T) {
		if err := outputResult(src, nil, filepath.Join(out, "empty.zip")); err == nil {
			t.Fatal("outputResult without files succeeded")
		}
	})
}
