// Package symlink creates links to dropped files inside a target folder,
// choosing a free name when the natural one is taken.
package symlink

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/joshuapare/regbatch/internal/logger"
)

// ErrAborted is returned when the user declines to continue with a renamed
// link.
var ErrAborted = errors.New("symlink: aborted by user")

// renamed matches the " (n)" suffix of a disambiguated link name.
var renamed = regexp.MustCompile(` \((\d+)\)$`)

// Options configures Create.
type Options struct {
	// Confirm is asked, with the taken path, whether to continue under a new
	// name. Returning false aborts the whole operation. Nil accepts.
	Confirm func(path string) bool

	// Logger receives skipped sources and link failures.
	// Default: the process logger (logger.L).
	Logger *slog.Logger

	// Symlink creates the link. Default: os.Symlink.
	Symlink func(target, link string) error
}

// DefaultOptions returns the options used when nil is passed to Create.
func DefaultOptions() *Options {
	return &Options{}
}

// Result reports the outcome for one source.
type Result struct {
	Source string
	Link   string // empty when the source was skipped
	// Skipped is set when the source could not be read; Err holds why.
	Skipped bool
	Err     error
}

// Exists reports whether path names a file, directory or link, without
// following a final symlink.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Resolve returns the link path for source inside folder.
//
// The natural path is folder joined with the source's base name. If that is
// taken, confirm is consulted (false yields ErrAborted), " (1)" is appended
// unless the path already ends in " (n)", and n is incremented until the
// path is free.
func Resolve(folder, source string, exists func(string) bool, confirm func(string) bool) (string, error) {
	link := filepath.Join(folder, filepath.Base(source))
	if !exists(link) {
		return link, nil
	}
	if confirm != nil && !confirm(link) {
		return "", ErrAborted
	}
	if !renamed.MatchString(link) {
		link += " (1)"
	}
	for exists(link) {
		m := renamed.FindStringSubmatchIndex(link)
		if m == nil {
			return "", fmt.Errorf("symlink: %q: no counter to increment", link)
		}
		n, err := strconv.Atoi(link[m[2]:m[3]])
		if err != nil {
			return "", fmt.Errorf("symlink: %q: %w", link, err)
		}
		link = link[:m[0]] + " (" + strconv.Itoa(n+1) + ")"
	}
	return link, nil
}

// Create links every source into folder. Sources that cannot be read are
// skipped; a failed link is recorded in its Result and processing
// continues. ErrAborted and naming errors stop processing and are returned
// with the results so far.
func Create(folder string, sources []string, opts *Options) ([]Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = logger.L
	}
	link := opts.Symlink
	if link == nil {
		link = os.Symlink
	}

	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		base := filepath.Base(src)
		if src == "" || base == "." || base == string(filepath.Separator) {
			log.Warn("source has no file name", "source", src)
			results = append(results, Result{Source: src, Skipped: true, Err: fmt.Errorf("symlink: %q has no file name", src)})
			continue
		}
		info, err := os.Stat(src)
		if err != nil {
			log.Warn("skipping unreadable source", "source", src, "error", err)
			results = append(results, Result{Source: src, Skipped: true, Err: err})
			continue
		}

		path, err := Resolve(folder, src, Exists, opts.Confirm)
		if err != nil {
			return results, err
		}

		res := Result{Source: src, Link: path}
		if err := link(src, path); err != nil {
			log.Error("creating symlink failed", "source", src, "link", path, "error", err)
			res.Err = err
		} else {
			log.Info("created symlink", "source", src, "link", path, "dir", info.IsDir())
		}
		results = append(results, res)
	}
	return results, nil
}
