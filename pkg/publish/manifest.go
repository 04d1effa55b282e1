package publish

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	bolt "go.etcd.io/bbolt"
)

// ManifestFile is the name of the install manifest inside the project's state directory
const ManifestFile = "installs.db"

// Manifest records which files a project installed into which prefix
type Manifest struct {
	db     *bolt.DB
	bucket []byte
}

// Entry is a single installed file
type Entry struct {
	Dest string
	Src  string
}

// OpenManifest opens (or creates) the manifest in the state directory dir. Each install prefix gets
// its own bucket, so nothing besides the installed files is written below the prefix.
func OpenManifest(dir, prefix string) (*Manifest, error) {
	if prefix == "" {
		return nil, eris.New("a prefix is required to open the install manifest")
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create %s", dir)
	}

	db, err := bolt.Open(filepath.Join(dir, ManifestFile), 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to open install manifest")
	}

	m := &Manifest{db: db, bucket: []byte(prefix)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(m.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "failed to prepare manifest for %s", prefix)
	}

	return m, nil
}

// Close releases the database
func (m *Manifest) Close() error {
	return m.db.Close()
}

// Record remembers that dest was installed from src
func (m *Manifest) Record(dest, src string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).Put([]byte(dest), []byte(src))
	})
}

// Forget removes dest from the manifest
func (m *Manifest) Forget(dest string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).Delete([]byte(dest))
	})
}

// Entries lists the installed files sorted by destination
func (m *Manifest) Entries() ([]Entry, error) {
	entries := []Entry{}
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).ForEach(func(k, v []byte) error {
			entries = append(entries, Entry{Dest: string(k), Src: string(v)})
			return nil
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to read install manifest")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Dest < entries[j].Dest })
	return entries, nil
}
