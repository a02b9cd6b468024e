// Package ledger records verification outcomes in badger, keyed by the
// SHA3-256 digest of the proof file so renamed copies are recognized.
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"prp-proof/proof"
)

const recordPrefix = "proof:"

// Record is one stored verification.
type Record struct {
	Digest            string    `json:"digest"`
	Path              string    `json:"path"`
	Number            string    `json:"number,omitempty"`
	Valid             bool      `json:"valid"`
	PRP               string    `json:"prp,omitempty"`
	Hardened          bool      `json:"hardened"`
	Type3Res64        string    `json:"type3,omitempty"`
	Type5Res64        string    `json:"type5,omitempty"`
	PartialPower      int       `json:"partial_power,omitempty"`
	ServerCost        uint64    `json:"server_cost"`
	CertificationCost uint64    `json:"certification_cost"`
	Error             string    `json:"error,omitempty"`
	VerifiedAt        time.Time `json:"verified_at"`
}

// NewRecord summarizes a verification of the file at path.
func NewRecord(digest, path string, res *proof.Result, err error) Record {
	rec := Record{Digest: digest, Path: path, VerifiedAt: time.Now().UTC()}
	if err != nil {
		rec.Error = err.Error()
	}
	if res == nil {
		return rec
	}
	if res.Header != nil {
		rec.Number = res.Header.Number.Raw
	}
	rec.Valid = res.Valid && err == nil
	if rec.Valid {
		rec.PRP = res.PRP.String()
	}
	rec.Hardened = res.Hardened
	rec.Type3Res64 = res.Type3Res64
	rec.Type5Res64 = res.Type5Res64
	rec.PartialPower = res.PartialPower
	rec.ServerCost = res.ServerCost
	rec.CertificationCost = res.CertificationCost
	return rec
}

// Ledger is a badger-backed record store.
type Ledger struct {
	db *badger.DB
}

// Open opens the ledger in dir, or an in-memory one when dir is empty.
func Open(dir string) (*Ledger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "ledger: open %q", dir)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func key(digest string) []byte { return []byte(recordPrefix + digest) }

// Put stores rec under rec.Digest, replacing any earlier record.
func (l *Ledger) Put(rec Record) error {
	if rec.Digest == "" {
		return errors.New("ledger: record without digest")
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "ledger: encode")
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.Digest), val)
	})
}

// Get returns the record for digest; ok is false when none exists.
func (l *Ledger) Get(digest string) (rec Record, ok bool, err error) {
	err = l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(digest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errors.Wrapf(err, "ledger: get %s", digest)
	}
	return rec, true, nil
}

// List returns every record in digest order.
func (l *Ledger) List() ([]Record, error) {
	var out []Record
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, errors.Wrap(err, "ledger: list")
}

// Digest hashes everything r yields.
func Digest(r io.Reader) (string, error) {
	h := sha3.New256()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, "ledger: digest")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestFile hashes the file at path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "ledger: digest")
	}
	defer f.Close()
	return Digest(f)
}
