/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: bucket.go
Description: The edge hit-count bucketing function. Load-bearing: two edges
with different bucketed counts are distinct features, so this mapping
directly controls corpus growth.
*/

package feature

// Bucket maps a raw hit count n >= 1 to a 3-bit bucket:
//
//	1->0, 2->1, 3->2, 4..7->3, 8..15->4, 16..31->5, 32..127->6, >=128->7
//
// Bucket is monotone: n1 <= n2 implies Bucket(n1) <= Bucket(n2).
func Bucket(n uint8) uint8 {
	switch {
	case n == 0:
		return 0
	case n == 1:
		return 0
	case n == 2:
		return 1
	case n == 3:
		return 2
	case n <= 7:
		return 3
	case n <= 15:
		return 4
	case n <= 31:
		return 5
	case n <= 127:
		return 6
	default:
		return 7
	}
}
