package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/homedisk/internal/errs"
)

// Listing failures.
var (
	ErrDirectoryNotFound = fmt.Errorf("%w: directory", errs.ErrNotFound)
	ErrNotADirectory     = fmt.Errorf("%w: not a directory", errs.ErrValidation)
	ErrUnreadableEntry   = errors.New("unreadable entry")
)

// Kind classifies a directory entry.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Entry is one child of a listed directory.
type Entry struct {
	Name     string // relative to the listed directory
	Kind     Kind
	Bytes    uint64 // raw size; recursive for directories
	Size     string // Bytes formatted for display
	Modified string // coarse age label, files only
}

// Listing is the content of one directory, split by kind.
type Listing struct {
	Files []Entry
	Dirs  []Entry
}

// Lister enumerates directories and computes display sizes.
type Lister struct {
	now         func() time.Time
	parallelism int
}

// ListerOption customizes a Lister.
type ListerOption func(*Lister)

// WithListerClock replaces the clock used for "time since modified".
func WithListerClock(now func() time.Time) ListerOption {
	return func(l *Lister) { l.now = now }
}

// WithParallelism bounds how many subdirectories are sized at once.
func WithParallelism(n int) ListerOption {
	return func(l *Lister) {
		if n > 0 {
			l.parallelism = n
		}
	}
}

// NewLister constructs a Lister.
func NewLister(opts ...ListerOption) *Lister {
	l := &Lister{now: time.Now, parallelism: runtime.NumCPU()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// List returns the immediate children of absDir. Subdirectory sizes are the
// sum of every file below them. Any unreadable entry fails the whole listing.
func (l *Lister) List(ctx context.Context, absDir string) (Listing, error) {
	info, err := os.Stat(absDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Listing{}, fmt.Errorf("%w: %s", ErrDirectoryNotFound, absDir)
	case err != nil:
		return Listing{}, fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, absDir, err)
	case !info.IsDir():
		return Listing{}, fmt.Errorf("%w: %s", ErrNotADirectory, absDir)
	}

	children, err := os.ReadDir(absDir)
	if err != nil {
		return Listing{}, fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, absDir, err)
	}

	now := l.now()
	out := Listing{Files: []Entry{}, Dirs: []Entry{}}
	for _, c := range children {
		if err := ctx.Err(); err != nil {
			return Listing{}, err
		}
		path := filepath.Join(absDir, c.Name())
		name, err := filepath.Rel(absDir, path)
		if err != nil {
			return Listing{}, fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, path, err)
		}

		if c.IsDir() {
			out.Dirs = append(out.Dirs, Entry{Name: name, Kind: KindDirectory})
			continue
		}

		fi, err := c.Info()
		if err != nil {
			return Listing{}, fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, path, err)
		}
		size := uint64(fi.Size())
		out.Files = append(out.Files, Entry{
			Name:     name,
			Kind:     KindFile,
			Bytes:    size,
			Size:     FormatSize(size),
			Modified: SinceModified(now.Sub(fi.ModTime())),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for i := range out.Dirs {
		d := &out.Dirs[i]
		g.Go(func() error {
			n, err := DirSize(gctx, filepath.Join(absDir, d.Name))
			if err != nil {
				return err
			}
			d.Bytes = n
			d.Size = FormatSize(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Listing{}, err
	}
	return out, nil
}

// DirSize walks root and sums the sizes of every non-directory entry below it.
// Directories themselves contribute nothing. Symlinks are not followed.
func DirSize(ctx context.Context, root string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, path, err)
		}
		total += uint64(fi.Size())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
