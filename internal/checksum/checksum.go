// Package checksum computes content hashes of files and directories, and
// normalizes/hashes repository URLs for the mirror cache's on-disk layout.
//
// Adapted from the directory-walking idiom in golang-dep's vendor pruning
// (karrick/godirwalk) and generalized from "hash solver inputs" to "hash an
// extracted tree."
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// MetadataFileName is the provenance sidecar written into a checkin=true
// library by the extractor. Directory checksums exclude it, because it is
// written after the content it describes, and validation must be a clean
// round-trip against the state extraction left behind.
const MetadataFileName = ".ams-compose-metadata.yaml"

const unreadableToken = "<unreadable>"

// FileChecksum returns the lowercase hex SHA-256 digest of the file at path,
// or "" if path does not exist or is not a regular file.
func FileChecksum(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return ""
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DirectoryChecksum enumerates every regular file under root, in
// lexicographic order of path relative to root, folding the relative path
// and then the file's contents into a single running SHA-256. Files named
// MetadataFileName are excluded. Unreadable files fold a sentinel token so
// the result stays deterministic rather than failing the whole walk.
//
// An empty directory yields the hash of the empty input (a non-empty hex
// string); a nonexistent path yields "".
func DirectoryChecksum(root string) string {
	fi, err := os.Lstat(root)
	if err != nil {
		return ""
	}
	if !fi.IsDir() {
		return FileChecksum(root)
	}

	var relPaths []string
	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			if de.IsDir() {
				return nil
			}
			rel, rerr := filepath.Rel(root, path)
			if rerr != nil {
				return rerr
			}
			if filepath.Base(rel) == MetadataFileName {
				return nil
			}
			relPaths = append(relPaths, rel)
			return nil
		},
		Unsorted:            false,
		FollowSymbolicLinks: false,
	})
	if err != nil {
		return ""
	}

	sort.Strings(relPaths)

	h := sha256.New()
	for _, rel := range relPaths {
		io.WriteString(h, filepath.ToSlash(rel))
		h.Write([]byte{0})

		content, rerr := readFileOrSentinel(filepath.Join(root, rel))
		h.Write(content)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func readFileOrSentinel(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return []byte(unreadableToken), nil
	}
	return data, nil
}

var (
	sshSCPForm = regexp.MustCompile(`^([\w.-]+)@([\w.-]+):(.+)$`)
)

// NormalizeRepoURL lowercases the URL, strips a trailing slash and a
// trailing ".git", and rewrites the "user@host:owner/repo" SCP-like form
// used by github.com and gitlab.com into an https URL. Other SSH forms
// (ssh://...) pass through unchanged, since they're already unambiguous.
func NormalizeRepoURL(rawurl string) string {
	u := strings.ToLower(strings.TrimSpace(rawurl))
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	if m := sshSCPForm.FindStringSubmatch(u); m != nil {
		host := m[2]
		if host == "github.com" || host == "gitlab.com" {
			return "https://" + host + "/" + strings.TrimSuffix(m[3], "/")
		}
	}

	return u
}

// RepoHash returns the first 8 bytes (16 hex chars) of the SHA-256 digest of
// the normalized URL. This is the directory name under the mirror root.
func RepoHash(rawurl string) string {
	norm := NormalizeRepoURL(rawurl)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:8])
}
