package cache

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CleanUp wipes dir when the fingerprint of srcFS no longer matches the one
// recorded alongside the cached files. Cached GraphQL responses depend on
// the query text, so a query change must not serve stale entries.
func CleanUp(dir string, srcFS fs.FS) {
	newHash, err := hashFS(srcFS)
	if err != nil {
		panic(err)
	}

	b := make([]byte, 4)
	oldHash := newHash + 1

	hashFile := filepath.Join(dir, "hash")
	if data, err := os.ReadFile(hashFile); err == nil && len(data) >= 4 {
		oldHash = binary.BigEndian.Uint32(data)
	}

	if newHash == oldHash {
		return
	}

	os.RemoveAll(dir)
	os.MkdirAll(dir, 0700)

	binary.BigEndian.PutUint32(b, newHash)
	if err := os.WriteFile(hashFile, b, 0400); err != nil {
		panic(err)
	}
}

func hashFS(srcFS fs.FS) (uint32, error) {
	h := fnv.New32a()

	err := fs.WalkDir(srcFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprint(h, path)
		if d.IsDir() {
			return nil
		}

		f, err := srcFS.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(h, f)
		if err != nil && err != io.EOF {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return h.Sum32(), nil
}
