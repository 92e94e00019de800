// Package hashing maps keys onto a fixed number of buckets.
package hashing

import "github.com/zeebo/xxh3"

// Jump implements Google's Jump consistent hash
// (https://arxiv.org/abs/1406.2294): it returns a bucket in [0, buckets)
// such that growing buckets by one only moves 1/buckets of the keys.
func Jump(key uint64, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	b, j := int64(-1), int64(0)
	for j < int64(buckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}

// Bucket hashes name with xxh3 and places it with Jump.
func Bucket(name string, buckets int) int {
	return Jump(xxh3.HashString(name), buckets)
}
