package bolt

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "trackers.db")
}

func openStore(t *testing.T) *boltStore {
	t.Helper()
	st, err := New(tempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st.(*boltStore)
}

func rule(name string, kind domain.HostRuleKind, action domain.RuleAction, source string, at time.Time) domain.HostRule {
	return domain.HostRule{Name: name, Kind: kind, Action: action, Source: source, AddedAt: at}
}

func TestBoltStore_GetFirstMatch_ExactAndSuffix(t *testing.T) {
	st := openStore(t)

	_, ok, err := st.GetFirstMatch("a.example.com")
	require.NoError(t, err)
	assert.False(t, ok, "empty db should miss")

	now := time.Unix(1700000000, 0).UTC()
	rules := []domain.HostRule{
		rule("a.example.com", domain.HostRuleExact, domain.RuleBlock, "ads", now),
		rule("example.net", domain.HostRuleSuffix, domain.RuleBlock, "analytics", now),
	}
	require.NoError(t, st.RebuildAll(rules, 1, now.Unix()))

	r, ok, err := st.GetFirstMatch("a.example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rules[0], r)

	r, ok, err = st.GetFirstMatch("sub.example.net")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "example.net", r.Name)
	assert.Equal(t, domain.HostRuleSuffix, r.Kind)
	assert.Equal(t, "analytics", r.Source)
	assert.Equal(t, now, r.AddedAt)

	// suffix rules are apex-inclusive
	_, ok, _ = st.GetFirstMatch("example.net")
	assert.True(t, ok)

	// exact rules do not cover subdomains
	_, ok, _ = st.GetFirstMatch("b.a.example.com")
	assert.False(t, ok)

	_, ok, _ = st.GetFirstMatch("nope.tld")
	assert.False(t, ok)
}

func TestBoltStore_MostSpecificWins(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	rules := []domain.HostRule{
		rule("example.com", domain.HostRuleSuffix, domain.RuleBlock, "list", now),
		rule("cdn.example.com", domain.HostRuleSuffix, domain.RuleAllow, "list", now),
	}
	require.NoError(t, st.RebuildAll(rules, 1, now.Unix()))

	r, ok, err := st.GetFirstMatch("img.cdn.example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cdn.example.com", r.Name)
	assert.True(t, r.IsAllow())

	r, _, _ = st.GetFirstMatch("www.example.com")
	assert.Equal(t, "example.com", r.Name)
	assert.False(t, r.IsAllow())
}

func TestBoltStore_ExactBeforeSuffixAtSameLevel(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	rules := []domain.HostRule{
		rule("t.example.com", domain.HostRuleSuffix, domain.RuleBlock, "suffix-list", now),
		rule("t.example.com", domain.HostRuleExact, domain.RuleAllow, "exact-list", now),
	}
	require.NoError(t, st.RebuildAll(rules, 1, now.Unix()))

	r, ok, _ := st.GetFirstMatch("t.example.com")
	require.True(t, ok)
	assert.Equal(t, domain.HostRuleExact, r.Kind)
	assert.Equal(t, "exact-list", r.Source)
}

func TestBoltStore_AllowSupersedesBlockForSameKey(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	rules := []domain.HostRule{
		rule("x.example.com", domain.HostRuleExact, domain.RuleBlock, "a", now),
		rule("x.example.com", domain.HostRuleExact, domain.RuleAllow, "b", now),
		rule("x.example.com", domain.HostRuleExact, domain.RuleBlock, "c", now),
	}
	require.NoError(t, st.RebuildAll(rules, 1, now.Unix()))

	r, ok, _ := st.GetFirstMatch("x.example.com")
	require.True(t, ok)
	assert.True(t, r.IsAllow())
	assert.Equal(t, "b", r.Source)
}

func TestBoltStore_RebuildReplacesAndStats(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	require.NoError(t, st.RebuildAll([]domain.HostRule{
		rule("old.example.com", domain.HostRuleExact, domain.RuleBlock, "s", now),
	}, 1, 100))
	require.NoError(t, st.RebuildAll([]domain.HostRule{
		rule("new.example.com", domain.HostRuleExact, domain.RuleBlock, "s", now),
		rule("example.org", domain.HostRuleSuffix, domain.RuleBlock, "s", now),
	}, 2, 200))

	_, ok, _ := st.GetFirstMatch("old.example.com")
	assert.False(t, ok, "rebuild should drop previous rules")

	stats := st.Stats()
	assert.Equal(t, uint64(2), stats.Version)
	assert.Equal(t, int64(200), stats.UpdatedUnix)
	assert.Equal(t, uint64(1), stats.ExactKeys)
	assert.Equal(t, uint64(1), stats.SuffixKeys)
}

func TestBoltStore_RebuildEmptyClears(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	require.NoError(t, st.RebuildAll([]domain.HostRule{
		rule("a.example.com", domain.HostRuleExact, domain.RuleBlock, "t", now),
	}, 1, now.Unix()))

	_, ok, _ := st.GetFirstMatch("a.example.com")
	require.True(t, ok)
	require.NoError(t, st.RebuildAll(nil, 2, now.Unix()))
	_, ok, _ = st.GetFirstMatch("a.example.com")
	assert.False(t, ok)
	stats := st.Stats()
	assert.Equal(t, uint64(2), stats.Version)
	assert.Zero(t, stats.ExactKeys)
}

func TestBoltStore_ReopenKeepsRules(t *testing.T) {
	path := tempDB(t)
	st, err := New(path)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.RebuildAll([]domain.HostRule{
		rule("tracker.example", domain.HostRuleSuffix, domain.RuleBlock, "t", now),
	}, 7, now.Unix()))
	require.NoError(t, st.Close())

	st, err = New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, ok, err := st.GetFirstMatch("px.tracker.example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), st.Stats().Version)
}

func TestNew_OpenError(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "no-such-dir", "trackers.db")
	st, err := New(bad)
	assert.Error(t, err)
	assert.Nil(t, st)
}

type assertErr struct{}

func (assertErr) Error() string { return "assert error" }

type fakeBucketCreator struct{ fail string }

func (f fakeBucketCreator) CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error) {
	if string(name) == f.fail {
		return nil, assertErr{}
	}
	return nil, nil
}

type bucketDeleterFunc func(name []byte) error

func (f bucketDeleterFunc) DeleteBucket(name []byte) error { return f(name) }

func TestEnsureBuckets_Errors(t *testing.T) {
	for _, name := range [][]byte{bucketExact, bucketSuffix, bucketMeta} {
		t.Run(string(name), func(t *testing.T) {
			err := ensureBuckets(fakeBucketCreator{fail: string(name)})
			assert.ErrorIs(t, err, assertErr{})
		})
	}
	assert.NoError(t, ensureBuckets(fakeBucketCreator{}))
}

func TestNew_EnsureBucketsError(t *testing.T) {
	old := ensureBucketsFn
	ensureBucketsFn = func(bucketCreator) error { return assertErr{} }
	defer func() { ensureBucketsFn = old }()

	st, err := New(tempDB(t))
	assert.Error(t, err)
	assert.Nil(t, st)
}

func TestDeleteBuckets(t *testing.T) {
	tests := []struct {
		name    string
		errs    map[string]error
		wantErr bool
	}{
		{name: "all deleted", errs: nil},
		{name: "ignore ErrBucketNotFound", errs: map[string]error{"a": bberrors.ErrBucketNotFound}},
		{name: "first fails", errs: map[string]error{"a": assertErr{}}, wantErr: true},
		{name: "second fails", errs: map[string]error{"b": assertErr{}}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			del := bucketDeleterFunc(func(name []byte) error { return tc.errs[string(name)] })
			err := deleteBuckets(del, []byte("a"), []byte("b"))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRebuildAll_ErrorPaths(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	rules := []domain.HostRule{rule("a.example.com", domain.HostRuleExact, domain.RuleBlock, "t", now)}
	require.NoError(t, st.RebuildAll(rules, 1, now.Unix()))

	oldDel, oldEns, oldLoad, oldMeta := deleteBucketsFn, ensureBucketsFn, loadRulesFn, writeMetaFn
	t.Cleanup(func() {
		deleteBucketsFn, ensureBucketsFn, loadRulesFn, writeMetaFn = oldDel, oldEns, oldLoad, oldMeta
	})

	deleteBucketsFn = func(bucketDeleter, ...[]byte) error { return assertErr{} }
	assert.Error(t, st.RebuildAll(rules, 2, now.Unix()))
	deleteBucketsFn = oldDel

	ensureBucketsFn = func(bucketCreator) error { return assertErr{} }
	assert.Error(t, st.RebuildAll(rules, 2, now.Unix()))
	ensureBucketsFn = oldEns

	loadRulesFn = func(*bbolt.Tx, []domain.HostRule) error { return assertErr{} }
	assert.Error(t, st.RebuildAll(rules, 2, now.Unix()))
	loadRulesFn = oldLoad

	writeMetaFn = func(*bbolt.Tx, uint64, int64) error { return assertErr{} }
	assert.Error(t, st.RebuildAll(rules, 2, now.Unix()))
	writeMetaFn = oldMeta

	// failed rebuilds roll back and leave the previous snapshot intact
	_, ok, _ := st.GetFirstMatch("a.example.com")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), st.Stats().Version)
}

func TestGetFirstMatch_MissingBuckets(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	require.NoError(t, st.RebuildAll([]domain.HostRule{
		rule("example.org", domain.HostRuleSuffix, domain.RuleBlock, "t", now),
	}, 1, now.Unix()))

	require.NoError(t, st.db.Update(func(tx *bbolt.Tx) error { return tx.DeleteBucket(bucketExact) }))
	_, ok, err := st.GetFirstMatch("a.example.org")
	require.NoError(t, err)
	assert.True(t, ok, "suffix match without exact bucket")

	require.NoError(t, st.db.Update(func(tx *bbolt.Tx) error { return tx.DeleteBucket(bucketSuffix) }))
	_, ok, err = st.GetFirstMatch("a.example.org")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = st.GetFirstMatch("")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeRuleValue(t *testing.T) {
	t.Run("short value falls back", func(t *testing.T) {
		r, err := decodeRuleValue("short.example", nil, domain.HostRuleSuffix)
		require.NoError(t, err)
		assert.Equal(t, domain.HostRuleSuffix, r.Kind)
		assert.Equal(t, domain.RuleBlock, r.Action)
		assert.True(t, r.AddedAt.IsZero())
		assert.Empty(t, r.Source)
	})
	t.Run("invalid kind and oversized source length", func(t *testing.T) {
		v := make([]byte, headerLen)
		v[0] = 99
		v[1] = 42
		binary.BigEndian.PutUint64(v[2:10], 123)
		binary.BigEndian.PutUint16(v[10:12], 1024)
		r, err := decodeRuleValue("x.example", v, domain.HostRuleExact)
		require.NoError(t, err)
		assert.Equal(t, domain.HostRuleExact, r.Kind)
		assert.Equal(t, domain.RuleBlock, r.Action)
		assert.Equal(t, int64(123), r.AddedAt.Unix())
		assert.Empty(t, r.Source)
	})
	t.Run("encode decode keeps fields", func(t *testing.T) {
		in := rule("y.example", domain.HostRuleSuffix, domain.RuleAllow, "net", time.Unix(5, 0).UTC())
		r, err := decodeRuleValue("y.example", encodeRuleValue(in), domain.HostRuleExact)
		require.NoError(t, err)
		assert.Equal(t, in, r)
	})
}
