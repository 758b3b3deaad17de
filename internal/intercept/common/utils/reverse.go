package utils

// ReverseString reverses s rune by rune. Suffix rule keys are stored reversed
// so every index (Bloom filter, Bolt bucket) must use this one implementation.
func ReverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
