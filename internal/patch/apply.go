package patch

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/qiniu/x/log"
)

// Apply applies set to the tree rooted at root. See ApplyAll.
func (s *Set) Apply(root string) error {
	return ApplyAll(root, s)
}

type fileState struct {
	orig    []byte
	data    []byte
	mode    fs.FileMode
	exists  bool
	deleted bool
	changed bool
}

// ApplyAll applies set (which may be nil) and then edits to the tree rooted
// at root as a single transaction. On failure a *PatchFailure names the first
// failing file and hunk and the tree is left as it was.
func ApplyAll(root string, set *Set, edits ...Substitution) error {
	return apply(root, set, edits, false)
}

// Ensure is ApplyAll for a tree that may already carry set and edits from an
// earlier run. A set whose hunks all reverse-apply cleanly is skipped, and so
// is an edit whose Old text is gone while its New text is present. A
// partially applied set is still a *PatchFailure.
func Ensure(root string, set *Set, edits ...Substitution) error {
	return apply(root, set, edits, true)
}

func apply(root string, set *Set, edits []Substitution, skipApplied bool) error {
	name := ""
	if set != nil {
		name = set.Name
	}
	tx := &transaction{root: root, name: name, files: make(map[string]*fileState)}

	if set != nil {
		applied := false
		if skipApplied {
			var err error
			if applied, err = tx.applied(set); err != nil {
				return err
			}
		}
		if applied {
			log.Infof("patch %s: already applied", name)
		} else {
			for _, f := range set.files {
				if err := tx.applyFile(f); err != nil {
					return err
				}
			}
		}
	}
	for _, e := range edits {
		if skipApplied {
			done, err := tx.substituted(e)
			if err != nil {
				return err
			}
			if done {
				log.Debugf("patch %s: %s: %q already substituted", name, e.Path, e.New)
				continue
			}
		}
		if err := tx.substitute(e); err != nil {
			return err
		}
	}
	return tx.commit()
}

type transaction struct {
	root  string
	name  string
	files map[string]*fileState
}

func (tx *transaction) fail(p string, hunk int, header string, err error) *PatchFailure {
	return &PatchFailure{Patch: tx.name, Path: p, Hunk: hunk, Header: header, Err: err}
}

func (tx *transaction) load(p string) (*fileState, error) {
	if st, ok := tx.files[p]; ok {
		return st, nil
	}
	full := filepath.Join(tx.root, filepath.FromSlash(p))
	st := &fileState{mode: 0o644}
	info, err := os.Stat(full)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return nil, tx.fail(p, 0, "", errors.New("not a regular file"))
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, tx.fail(p, 0, "", err)
		}
		st.orig, st.data, st.mode, st.exists = data, data, info.Mode().Perm(), true
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, tx.fail(p, 0, "", err)
	}
	tx.files[p] = st
	return st, nil
}

func (tx *transaction) applyFile(f *gitdiff.File) error {
	p, err := cleanPath(fileName(f))
	if err != nil {
		return tx.fail(fileName(f), 0, "", err)
	}
	st, err := tx.load(p)
	if err != nil {
		return err
	}
	switch {
	case f.IsNew && st.exists:
		return tx.fail(p, 0, "", fs.ErrExist)
	case !f.IsNew && (!st.exists || st.deleted):
		return tx.fail(p, 0, "", ErrTargetMissing)
	}

	data, hunk, err := applyHunks(st.data, f)
	if err != nil {
		return tx.fail(p, hunk+1, f.TextFragments[hunk].Header(), err)
	}
	st.data = data
	st.changed = true
	if f.IsDelete {
		st.deleted = true
	}
	log.Debugf("patch %s: %s: %d hunk(s) ok", tx.name, p, len(f.TextFragments))
	return nil
}

// applied reports whether every file of set already holds the patched
// content, that is, whether the reversed diff applies cleanly.
func (tx *transaction) applied(set *Set) (bool, error) {
	for _, f := range set.files {
		p, err := cleanPath(fileName(f))
		if err != nil {
			return false, tx.fail(fileName(f), 0, "", err)
		}
		st, err := tx.load(p)
		if err != nil {
			return false, err
		}
		if f.IsDelete {
			if st.exists {
				return false, nil
			}
			continue
		}
		if !st.exists {
			return false, nil
		}
		if _, _, err := applyHunks(st.data, reverse(f)); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// applyHunks applies the text fragments of f to data one at a time so a
// failure can name the hunk (its index is returned). Hunk positions refer to
// the original file and are shifted by the line delta of the hunks applied
// before them.
func applyHunks(data []byte, f *gitdiff.File) ([]byte, int, error) {
	delta := int64(0)
	for i, frag := range f.TextFragments {
		shifted := *frag
		shifted.OldPosition += delta
		one := *f
		one.TextFragments = []*gitdiff.TextFragment{&shifted}

		var out bytes.Buffer
		if err := gitdiff.Apply(&out, bytes.NewReader(data), &one); err != nil {
			return nil, i, err
		}
		data = out.Bytes()
		delta += frag.NewLines - frag.OldLines
	}
	return data, 0, nil
}

// reverse returns the diff that undoes f.
func reverse(f *gitdiff.File) *gitdiff.File {
	r := *f
	r.OldName, r.NewName = f.NewName, f.OldName
	r.IsNew, r.IsDelete = f.IsDelete, f.IsNew
	r.OldMode, r.NewMode = f.NewMode, f.OldMode
	r.TextFragments = make([]*gitdiff.TextFragment, len(f.TextFragments))
	for i, frag := range f.TextFragments {
		rf := *frag
		rf.OldPosition, rf.NewPosition = frag.NewPosition, frag.OldPosition
		rf.OldLines, rf.NewLines = frag.NewLines, frag.OldLines
		rf.LinesAdded, rf.LinesDeleted = frag.LinesDeleted, frag.LinesAdded
		rf.Lines = make([]gitdiff.Line, len(frag.Lines))
		for j, line := range frag.Lines {
			switch line.Op {
			case gitdiff.OpAdd:
				line.Op = gitdiff.OpDelete
			case gitdiff.OpDelete:
				line.Op = gitdiff.OpAdd
			}
			rf.Lines[j] = line
		}
		r.TextFragments[i] = &rf
	}
	return &r
}

// substituted reports whether e was already carried out on its file.
func (tx *transaction) substituted(e Substitution) (bool, error) {
	p, err := cleanPath(e.Path)
	if err != nil {
		return false, tx.fail(e.Path, 0, "", err)
	}
	st, err := tx.load(p)
	if err != nil {
		return false, err
	}
	if !st.exists || st.deleted || e.Old == "" {
		return false, nil
	}
	return !bytes.Contains(st.data, []byte(e.Old)) && bytes.Contains(st.data, []byte(e.New)), nil
}

func (tx *transaction) substitute(e Substitution) error {
	p, err := cleanPath(e.Path)
	if err != nil {
		return tx.fail(e.Path, 0, "", err)
	}
	st, err := tx.load(p)
	if err != nil {
		return err
	}
	if !st.exists || st.deleted {
		return tx.fail(p, 0, "", ErrTargetMissing)
	}
	if e.Old == "" || !bytes.Contains(st.data, []byte(e.Old)) {
		return tx.fail(p, 0, "", fmt.Errorf("substitution: %q not found", e.Old))
	}
	st.data = bytes.ReplaceAll(st.data, []byte(e.Old), []byte(e.New))
	st.changed = true
	return nil
}

// commit writes every changed file. A failed write restores the files
// written before it.
func (tx *transaction) commit() error {
	paths := make([]string, 0, len(tx.files))
	for p, st := range tx.files {
		if st.changed {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var done []string
	for _, p := range paths {
		st := tx.files[p]
		full := filepath.Join(tx.root, filepath.FromSlash(p))
		var err error
		if st.deleted {
			err = os.Remove(full)
		} else {
			err = writeFile(full, st.data, st.mode)
		}
		if err != nil {
			tx.rollback(done)
			return tx.fail(p, 0, "", err)
		}
		done = append(done, p)
	}
	return nil
}

func (tx *transaction) rollback(written []string) {
	for _, p := range written {
		st := tx.files[p]
		full := filepath.Join(tx.root, filepath.FromSlash(p))
		var err error
		if st.exists {
			err = writeFile(full, st.orig, st.mode)
		} else {
			err = os.Remove(full)
		}
		if err != nil {
			log.Errorf("patch %s: cannot restore %s: %v", tx.name, p, err)
		}
	}
}

// writeFile replaces name through a temporary file in the same directory.
func writeFile(name string, data []byte, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(name), ".llarcfg-patch-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
