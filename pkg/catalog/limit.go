package catalog

import "io"

// LimitReader returns a reader that yields the content of r but fails with
// ErrSizeLimitExceeded as soon as more than limit bytes have been read.
// A limit of zero or less disables the check.
func LimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	return &limitedReader{r: io.LimitReader(r, limit+1), limit: limit}
}

type limitedReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		// drop the byte past the limit so callers never persist it
		over := int(l.n - l.limit)
		if over > n {
			over = n
		}
		return n - over, ErrSizeLimitExceeded
	}
	return n, err
}
