package internal

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// outputResult copies files, slash-separated paths relative to srcDir, to
// dest. The suffix of dest picks the format: .zip, .tar.gz/.tgz, .tar.xz,
// otherwise a directory. Symlinks are kept as links.
func outputResult(srcDir string, files []string, dest string) error {
	if len(files) == 0 {
		return fmt.Errorf("no installed files recorded for %s", srcDir)
	}
	switch {
	case strings.HasSuffix(dest, ".zip"):
		return writeArchive(dest, func(w io.Writer) error {
			return zipArchive(w, srcDir, files)
		})
	case strings.HasSuffix(dest, ".tar.gz"), strings.HasSuffix(dest, ".tgz"):
		return writeArchive(dest, func(w io.Writer) error {
			zw := pgzip.NewWriter(w)
			if err := tarArchive(zw, srcDir, files); err != nil {
				return err
			}
			return zw.Close()
		})
	case strings.HasSuffix(dest, ".tar.xz"):
		return writeArchive(dest, func(w io.Writer) error {
			xw, err := xz.NewWriter(w)
			if err != nil {
				return err
			}
			if err := tarArchive(xw, srcDir, files); err != nil {
				return err
			}
			return xw.Close()
		})
	}
	return copyTree(dest, srcDir, files)
}

func writeArchive(dest string, write func(io.Writer) error) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

// entry is one installed file. link is the target of a symlink, "" for a
// regular file.
type entry struct {
	name string
	path string
	info fs.FileInfo
	link string
}

// eachFile calls fn for every regular file or symlink in files, in order.
// Directories are skipped; their contents are listed separately.
func eachFile(srcDir string, files []string, fn func(e entry) error) error {
	for _, name := range files {
		p := filepath.Join(srcDir, filepath.FromSlash(name))
		info, err := os.Lstat(p)
		if err != nil {
			return err
		}
		e := entry{name: name, path: p, info: info}
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if e.link, err = os.Readlink(p); err != nil {
				return err
			}
		case info.IsDir():
			continue
		case !info.Mode().IsRegular():
			return fmt.Errorf("%s: unsupported file type %v", p, info.Mode().Type())
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}

func copyTree(dest, srcDir string, files []string) error {
	return eachFile(srcDir, files, func(e entry) error {
		target := filepath.Join(dest, filepath.FromSlash(e.name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if e.link != "" {
			return os.Symlink(e.link, target)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, e.info.Mode().Perm())
		if err != nil {
			return err
		}
		if err := copyFile(out, e.path); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

func zipArchive(out io.Writer, srcDir string, files []string) error {
	w := zip.NewWriter(out)
	err := eachFile(srcDir, files, func(e entry) error {
		header, err := zip.FileInfoHeader(e.info)
		if err != nil {
			return err
		}
		header.Name = e.name
		if e.link != "" {
			header.Method = zip.Store
			writer, err := w.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = io.WriteString(writer, e.link)
			return err
		}
		header.Method = zip.Deflate
		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		return copyFile(writer, e.path)
	})
	if err != nil {
		return err
	}
	return w.Close()
}

func tarArchive(out io.Writer, srcDir string, files []string) error {
	w := tar.NewWriter(out)
	err := eachFile(srcDir, files, func(e entry) error {
		header, err := tar.FileInfoHeader(e.info, e.link)
		if err != nil {
			return err
		}
		header.Name = e.name
		if err := w.WriteHeader(header); err != nil {
			return err
		}
		if e.link != "" {
			return nil
		}
		return copyFile(w, e.path)
	})
	if err != nil {
		return err
	}
	return w.Close()
}
