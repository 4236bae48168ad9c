package buffer

// Range is a half-open byte range [Start, End).
type Range struct {
	Start, End int64
}

// Len returns the range's length.
func (r Range) Len() int64 { return r.End - r.Start }
