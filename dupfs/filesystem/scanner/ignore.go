package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreChecker matches paths relative to the directory holding the rules
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

// ignoreScope is one ignore file and the directory it applies under
type ignoreScope struct {
	base    string
	checker IgnoreChecker
}

// loadIgnore compiles dir/name if it exists. A missing file is not an error.
func loadIgnore(fs billy.Filesystem, dir, name string) (IgnoreChecker, error) {
	if name == "" {
		return nil, nil
	}

	ignorePath := filepath.Join(dir, name)
	if _, err := fs.Stat(ignorePath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error checking for %s: %w", ignorePath, err)
	}

	data, err := util.ReadFile(fs, ignorePath)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", ignorePath, err)
	}

	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), nil
}

// ignored reports whether any scope excludes path
func ignored(scopes []ignoreScope, path string, isDir bool) bool {
	for _, scope := range scopes {
		rel, err := filepath.Rel(scope.base, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if scope.checker.MatchesPath(rel) {
			return true
		}
		if isDir && scope.checker.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}
