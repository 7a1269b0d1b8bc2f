package model

import (
	"path"
	"strings"
	"unicode"
)

const (
	// MetaDir holds the store internals at the root of a repository
	MetaDir = ".dmf"

	// SentinelFile is placed in every versioned directory
	SentinelFile = ".keep"

	// descriptor files (object metadata)
	repoDescriptorFile = "repo.yaml"

	historyDir = "history"
	blobsDir   = "blobs"
	indexDir   = "index"
	batchesDir = "batches"
)

// SystemFolder is a fixed folder created in every user namespace
type SystemFolder struct {
	Name        string
	Description string
}

// SystemFolders lists the folders created under each user namespace
var SystemFolders = []SystemFolder{
	{Name: "Simulation", Description: "Folder for storing simulation files."},
	{Name: "Sorbentfit", Description: "Folder for storing sorbent fit."},
}

// GetPathToRepoDescriptor yields the key of the repository descriptor in the meta store
func GetPathToRepoDescriptor() string {
	return repoDescriptorFile
}

// GetHistoryDir yields the directory holding history entries, relative to the meta dir
func GetHistoryDir() string {
	return historyDir
}

// GetBlobsDir yields the directory holding content blobs, relative to the meta dir
func GetBlobsDir() string {
	return blobsDir
}

// GetIndexDir yields the directory holding the index database, relative to the meta dir
func GetIndexDir() string {
	return indexDir
}

// GetBatchesDir yields the directory holding batch journals, relative to the meta dir
func GetBatchesDir() string {
	return batchesDir
}

// GetPathToBatch yields the key of a batch journal in the meta store
func GetPathToBatch(batchID string) string {
	return path.Join(batchesDir, batchID+".yaml")
}

// GetBlobKey yields the storage key for a checksum, with a 2-character fan-out
func GetBlobKey(checksum string) string {
	if len(checksum) < 3 {
		return checksum
	}
	return checksum[:2] + "/" + checksum[2:]
}

// UserPath yields the namespace folder of a user
func UserPath(user string) string {
	return "/" + user
}

// CleanPath normalizes a store path.
//
// Store paths are slash separated, absolute relative to the repository root,
// never the root itself and never inside the meta directory.
// Control characters are rejected: a path is recorded on a single line of history.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath.WrapMessage("path must be absolute: %q", p)
	}
	if strings.IndexFunc(p, unicode.IsControl) >= 0 {
		return "", ErrInvalidPath.WrapMessage("path must not contain control characters: %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", ErrInvalidPath.WrapMessage("path must not contain '..': %q", p)
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "/" {
		return "", ErrInvalidPath.WrapMessage("the repository root is not an object")
	}
	parts := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	if parts[0] == MetaDir {
		return "", ErrInvalidPath.WrapMessage("path is reserved: %q", p)
	}
	if parts[len(parts)-1] == SentinelFile {
		return "", ErrInvalidPath.WrapMessage("path is reserved: %q", p)
	}
	return cleaned, nil
}

// ParentPath yields the parent folder of a path, "/" for top-level objects
func ParentPath(p string) string {
	return path.Dir(p)
}

// BaseName yields the last element of a path
func BaseName(p string) string {
	return path.Base(p)
}

// IsDescendant tells if p is strictly below ancestor
func IsDescendant(p, ancestor string) bool {
	return strings.HasPrefix(p, strings.TrimSuffix(ancestor, "/")+"/")
}

// Rebase moves p from under oldPrefix to under newPrefix
func Rebase(p, oldPrefix, newPrefix string) string {
	if p == oldPrefix {
		return newPrefix
	}
	return newPrefix + strings.TrimPrefix(p, oldPrefix)
}
