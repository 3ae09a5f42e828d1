// Package pathsafe resolves a library's destination path and confines it to
// the project root, generalized from golang-dep's internal/fs.go
// (HasFilepathPrefix, IsDir), which answered "is X inside this GOPATH" for
// import-path splitting; here the same prefix-containment check answers
// "is X inside the project root" for every local_path the tool will write
// to.
package pathsafe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathEscapeError indicates that a resolved destination path falls outside
// the project root.
type PathEscapeError struct {
	Path string
	Root string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("resolved path %s escapes project root %s", e.Path, e.Root)
}

// Resolve computes the destination for a library given its (possibly empty)
// local_path override, the manifest's library_root, the library name, and
// the project root, then confines the result to projectRoot.
//
// If localPath is non-empty and absolute, it is used as-is (still subject to
// the containment check). If non-empty and relative, it is joined with
// projectRoot. Otherwise the default projectRoot/libraryRoot/name is used.
func Resolve(projectRoot, libraryRoot, name, localPath string) (string, error) {
	var dest string
	switch {
	case localPath != "" && filepath.IsAbs(localPath):
		dest = localPath
	case localPath != "":
		dest = filepath.Join(projectRoot, localPath)
	default:
		dest = filepath.Join(projectRoot, libraryRoot, name)
	}

	return Confine(projectRoot, dest)
}

// Confine fully resolves path (following ".." and symlinks, to the extent
// they exist on disk) and verifies that the resolved project root is an
// ancestor of the result. It is safe to call on a path that does not yet
// exist: only the existing ancestor prefix is symlink-resolved.
func Confine(projectRoot, path string) (string, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", err
	}
	resolvedRoot, err := resolveExisting(absRoot)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolvedPath, err := resolveExisting(absPath)
	if err != nil {
		return "", err
	}

	if !hasFilepathPrefix(resolvedPath, resolvedRoot) {
		return "", &PathEscapeError{Path: resolvedPath, Root: resolvedRoot}
	}

	return resolvedPath, nil
}

// resolveExisting resolves symlinks along the longest existing ancestor of
// path, then rejoins the non-existent suffix (if any) unresolved. This lets
// Confine validate destinations that have not been created yet.
func resolveExisting(path string) (string, error) {
	clean := filepath.Clean(path)

	var suffix []string
	cur := clean
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// Nothing on the path exists; return the clean, unresolved form.
			return clean, nil
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}

// hasFilepathPrefix reports whether path is prefix or a descendant of
// prefix, respecting path component boundaries (so /foo is not a prefix of
// /foobar).
func hasFilepathPrefix(path, prefix string) bool {
	path = strings.TrimSuffix(path, string(filepath.Separator))
	prefix = strings.TrimSuffix(prefix, string(filepath.Separator))

	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
