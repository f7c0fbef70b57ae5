package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const recordSuffix = ".cache"

// diskTier stores one durable record per key under the cache directory so
// the cache survives a process restart. Filenames are the sha256 of the
// key, which keeps arbitrary keys filesystem-safe. Records are msgpack
// envelopes carrying the key, content and expiry deadline.
type diskTier struct {
	dir      string
	filePerm os.FileMode
	log      Logger
}

func newDiskTier(dir string, filePerm os.FileMode, log Logger) *diskTier {
	return &diskTier{dir: dir, filePerm: filePerm, log: log}
}

func (d *diskTier) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+recordSuffix)
}

// Read returns the durable record for key, if any. Missing, unreadable and
// corrupt records all behave as "not found"; bad records are deleted so the
// same failure is not hit again.
func (d *diskTier) Read(key string) (Entry, bool) {
	e, ok := d.readPath(d.path(key))
	if !ok {
		return Entry{}, false
	}
	if e.Key != key {
		d.log.Warnf("cache: record key mismatch for %s, removing", key)
		d.remove(d.path(key))
		return Entry{}, false
	}
	return e, true
}

func (d *diskTier) readPath(path string) (Entry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.log.Warnf("cache: unreadable record %s: %v", path, err)
			d.remove(path)
		}
		return Entry{}, false
	}
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil || e.Key == "" || e.Content == "" {
		d.log.Warnf("cache: corrupt record %s, removing", path)
		d.remove(path)
		return Entry{}, false
	}
	return e, true
}

// Write persists an entry atomically: the record is written to a temp file
// and renamed into place, so a reader never observes a partial record.
func (d *diskTier) Write(e Entry) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.dir, "record-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, d.filePerm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, d.path(e.Key)); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (d *diskTier) Delete(key string) error {
	err := os.Remove(d.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *diskTier) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.log.Warnf("cache: failed to remove record %s: %v", path, err)
	}
}

// List returns the paths of all durable records. The keys themselves live
// inside the records; callers read each path to recover them.
func (d *diskTier) List() ([]string, error) {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ent := range dirents {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), recordSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(d.dir, ent.Name()))
	}
	return paths, nil
}

func (d *diskTier) ClearAll() error {
	paths, err := d.List()
	if err != nil {
		return err
	}
	for _, p := range paths {
		d.remove(p)
	}
	return nil
}
