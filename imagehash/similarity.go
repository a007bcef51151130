package imagehash

import "fmt"

// Similarity returns the normalized Hamming similarity of two equal-length
// bit strings: 1 - distance/length. Comparing hashes of different lengths
// is a structural problem, not a low similarity, so it is an error.
func Similarity(a, b string) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("hash length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty hash")
	}
	distance := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			distance++
		}
	}
	return 1 - float64(distance)/float64(len(a)), nil
}
