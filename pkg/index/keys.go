package index

import "github.com/ccsi/dmflite/pkg/model"

// Key layout:
//
//	e/<token>            -> history entry (json)
//	i/<id>/<token>       -> (empty) per-object history, in commit order
//	p/<path>             -> id currently tracked at path
//	o/<id>               -> current path of an object
//	v/<id>/<major.minor> -> token of the latest entry for a version
//	c/<checksum>         -> token of the latest entry carrying a checksum
//	m/last               -> last token applied
var (
	entryPref    = []byte("e/")
	historyPref  = []byte("i/")
	pathPref     = []byte("p/")
	objectPref   = []byte("o/")
	versionPref  = []byte("v/")
	checksumPref = []byte("c/")
	lastKey      = []byte("m/last")
)

func withPrefix(prefix []byte, parts ...string) []byte {
	k := make([]byte, 0, len(prefix)+64)
	k = append(k, prefix...)
	for i, part := range parts {
		if i > 0 {
			k = append(k, '/')
		}
		k = append(k, part...)
	}
	return k
}

func entryKey(token string) []byte {
	return withPrefix(entryPref, token)
}

func historyKey(id, token string) []byte {
	return withPrefix(historyPref, id, token)
}

// historyPrefix ends with a separator so that no id prefixes another
func historyPrefix(id string) []byte {
	return append(withPrefix(historyPref, id), '/')
}

func pathKey(pth string) []byte {
	return withPrefix(pathPref, pth)
}

func descendantsPrefix(pth string) []byte {
	return append(withPrefix(pathPref, pth), '/')
}

func objectKey(id string) []byte {
	return withPrefix(objectPref, id)
}

func versionKey(id string, v model.Version) []byte {
	return withPrefix(versionPref, id, v.String())
}

func checksumKey(checksum string) []byte {
	return withPrefix(checksumPref, checksum)
}
