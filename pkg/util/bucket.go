package util

// BucketStart floors a millisecond timestamp to a multiple of sizeMs.
func BucketStart(tsMs, sizeMs int64) int64 {
	if sizeMs <= 0 {
		return tsMs
	}
	b := tsMs / sizeMs * sizeMs
	if tsMs < 0 && b != tsMs {
		b -= sizeMs
	}
	return b
}
