package jpt

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MergeFile reads JPEG and PNG payloads from jpegPath and pngPath and writes
// the container to jptPath. Both sources are read before the destination is touched,
// so a missing source leaves no output behind.
func MergeFile(jptPath, jpegPath, pngPath string) error {
	jpegData, err := readSource("merge", jpegPath)
	if err != nil {
		return err
	}
	pngData, err := readSource("merge", pngPath)
	if err != nil {
		return err
	}
	container, err := Merge(jpegData, pngData)
	if err != nil {
		return err
	}
	return writeFiles("merge", staged{path: jptPath, data: container})
}

// SplitFile reads the container at jptPath and writes its payloads to jpegPath and pngPath.
// Nothing is written unless the whole container parses.
func SplitFile(jptPath, jpegPath, pngPath string) error {
	f, err := os.Open(filepath.Clean(jptPath))
	if err != nil {
		return &FileError{Op: "split", Kind: KindSourceNotFound, Path: jptPath, Err: err}
	}
	defer f.Close()

	jpegData, pngData, err := Decode(bufio.NewReader(f))
	if err != nil {
		if KindOf(err) == "" {
			return &FileError{Op: "split", Kind: KindSourceNotFound, Path: jptPath, Err: err}
		}
		return fmt.Errorf("split %s: %w", jptPath, err)
	}
	return writeFiles("split",
		staged{path: jpegPath, data: jpegData},
		staged{path: pngPath, data: pngData},
	)
}

func readSource(op, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &FileError{Op: op, Kind: KindSourceNotFound, Path: path, Err: err}
	}
	return data, nil
}

type staged struct {
	path   string
	data   []byte
	tmp    string
	backup string
	done   bool
}

// writeFiles writes every file to a temporary sibling first and renames them into
// place only after all of them were written. If a rename fails, outputs already
// renamed are rolled back to their previous content, or removed if they did not exist.
func writeFiles(op string, files ...staged) (err error) {
	defer func() {
		for i := len(files) - 1; i >= 0; i-- {
			f := files[i]
			if f.tmp != "" {
				_ = os.Remove(f.tmp)
			}
			switch {
			case err == nil || !f.done:
				if f.backup != "" {
					_ = os.Remove(f.backup)
				}
			case f.backup != "":
				_ = os.Rename(f.backup, f.path)
			default:
				_ = os.Remove(f.path)
			}
		}
	}()

	for i := range files {
		f := &files[i]
		f.path = filepath.Clean(f.path)
		f.tmp = sibling(f.path, "tmp")
		if err := writeTemp(f.tmp, f.data); err != nil {
			return &FileError{Op: op, Kind: KindWriteFailed, Path: f.path, Err: err}
		}
		bak, err := keepPrevious(f.path)
		if err != nil {
			return &FileError{Op: op, Kind: KindWriteFailed, Path: f.path, Err: err}
		}
		f.backup = bak
	}

	for i := range files {
		f := &files[i]
		if err := os.Rename(f.tmp, f.path); err != nil {
			return &FileError{Op: op, Kind: KindWriteFailed, Path: f.path, Err: err}
		}
		f.tmp = ""
		f.done = true
	}
	return nil
}

func sibling(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+"."+suffix)
}

// keepPrevious hard-links an existing regular file at path to a hidden sibling
// and returns the sibling path, or "" when there is nothing to keep.
func keepPrevious(path string) (string, error) {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", nil
	}
	bak := sibling(path, "bak")
	if err := os.Link(path, bak); err != nil {
		return "", err
	}
	return bak, nil
}

func writeTemp(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	return errors.Join(werr, serr, cerr)
}
