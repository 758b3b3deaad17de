package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/repos/trackers"
)

var (
	bucketExact  = []byte("exact")
	bucketSuffix = []byte("suffix")
	bucketMeta   = []byte("meta")

	metaVersion = []byte("version")
	metaUpdated = []byte("updated")
)

// value layout: kind(1) action(1) addedAt unix(8) sourceLen(2) source(n)
const headerLen = 12

// boltStore implements trackers.Store using bbolt.
// Exact rules are keyed by host; suffix rules by reversed host.
type boltStore struct {
	db *bbolt.DB
}

type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

// seams for tests
var (
	ensureBucketsFn = ensureBuckets
	deleteBucketsFn = deleteBuckets
	loadRulesFn     = loadRules
	writeMetaFn     = writeMeta
)

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (trackers.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open tracker db %q: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init tracker db %q: %w", path, err)
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// GetFirstMatch walks the anchors of name from most-specific to apex.
// At the first anchor the exact bucket is consulted before the suffix bucket.
func (s *boltStore) GetFirstMatch(name string) (domain.HostRule, bool, error) {
	var (
		rule  domain.HostRule
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketExact)
		sb := tx.Bucket(bucketSuffix)
		for i, a := range utils.Anchors(name) {
			if i == 0 && eb != nil {
				if v := eb.Get([]byte(a)); v != nil {
					r, err := decodeRuleValue(a, v, domain.HostRuleExact)
					if err != nil {
						return err
					}
					rule, found = r, true
					return nil
				}
			}
			if sb == nil {
				continue
			}
			if v := sb.Get([]byte(utils.ReverseString(a))); v != nil {
				r, err := decodeRuleValue(a, v, domain.HostRuleSuffix)
				if err != nil {
					return err
				}
				rule, found = r, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return domain.HostRule{}, false, err
	}
	return rule, found, nil
}

// RebuildAll replaces every rule and the metadata in a single transaction.
func (s *boltStore) RebuildAll(rules []domain.HostRule, version uint64, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBucketsFn(tx, bucketExact, bucketSuffix, bucketMeta); err != nil {
			return err
		}
		if err := ensureBucketsFn(tx); err != nil {
			return err
		}
		if err := loadRulesFn(tx, rules); err != nil {
			return err
		}
		return writeMetaFn(tx, version, updatedUnix)
	})
}

func (s *boltStore) Stats() trackers.StoreStats {
	st := trackers.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketExact); b != nil {
			st.ExactKeys = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketSuffix); b != nil {
			st.SuffixKeys = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(metaVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(metaUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketExact, bucketSuffix, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %q: %w", name, err)
		}
	}
	return nil
}

func deleteBuckets(tx bucketDeleter, names ...[]byte) error {
	for _, name := range names {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return fmt.Errorf("delete bucket %q: %w", name, err)
		}
	}
	return nil
}

func loadRules(tx *bbolt.Tx, rules []domain.HostRule) error {
	eb := tx.Bucket(bucketExact)
	sb := tx.Bucket(bucketSuffix)
	for _, r := range rules {
		b, key := eb, []byte(r.Name)
		if r.IsSuffix() {
			b, key = sb, []byte(utils.ReverseString(r.Name))
		}
		if v := b.Get(key); v != nil {
			prev, err := decodeRuleValue(r.Name, v, r.Kind)
			if err != nil {
				return err
			}
			if !trackers.Supersedes(prev, r) {
				continue
			}
		}
		if err := b.Put(key, encodeRuleValue(r)); err != nil {
			return fmt.Errorf("put rule %q: %w", r.Name, err)
		}
	}
	return nil
}

func writeMeta(tx *bbolt.Tx, version uint64, updatedUnix int64) error {
	b := tx.Bucket(bucketMeta)
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put(metaVersion, vbuf); err != nil {
		return err
	}
	return b.Put(metaUpdated, ubuf)
}

func encodeRuleValue(r domain.HostRule) []byte {
	src := r.Source
	if len(src) > 0xFFFF {
		src = src[:0xFFFF]
	}
	v := make([]byte, headerLen+len(src))
	v[0] = byte(r.Kind)
	v[1] = byte(r.Action)
	var added int64
	if !r.AddedAt.IsZero() {
		added = r.AddedAt.Unix()
	}
	binary.BigEndian.PutUint64(v[2:10], uint64(added))
	binary.BigEndian.PutUint16(v[10:12], uint16(len(src)))
	copy(v[headerLen:], src)
	return v
}

// decodeRuleValue rebuilds a HostRule from a stored value. Short values decode
// to a block rule of defaultKind with no source or timestamp.
func decodeRuleValue(name string, v []byte, defaultKind domain.HostRuleKind) (domain.HostRule, error) {
	r := domain.HostRule{Name: name, Kind: defaultKind, Action: domain.RuleBlock}
	if len(v) < headerLen {
		return r, nil
	}
	if k := domain.HostRuleKind(v[0]); k == domain.HostRuleExact || k == domain.HostRuleSuffix {
		r.Kind = k
	}
	if a := domain.RuleAction(v[1]); a == domain.RuleAllow {
		r.Action = a
	}
	if added := int64(binary.BigEndian.Uint64(v[2:10])); added != 0 {
		r.AddedAt = time.Unix(added, 0).UTC()
	}
	n := int(binary.BigEndian.Uint16(v[10:12]))
	if n > len(v)-headerLen {
		n = 0
	}
	r.Source = string(v[headerLen : headerLen+n])
	return r, nil
}

var _ trackers.Store = (*boltStore)(nil)
