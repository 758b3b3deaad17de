package bloom

// Filter is the minimal Bloom filter surface the rule indexes need.
// MightContain is safe to call concurrently with Add.
type Filter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// Factory builds filters sized for a dataset.
type Factory interface {
	New(capacity uint64, fpRate float64) Filter
}

// Sizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type Sizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}
