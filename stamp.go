package catalog

import "time"

// stampFromMillis builds a Stamped from unix millisecond fields. Zero
// leaves the corresponding time unset.
func stampFromMillis(value []byte, written, expires int64) Stamped {
	st := Stamped{Value: cloneBytes(value)}
	if written > 0 {
		st.WrittenAt = time.UnixMilli(written)
	}
	if expires > 0 {
		st.ExpiresAt = time.UnixMilli(expires)
	}
	return st
}

func stampExpired(st Stamped, now time.Time) bool {
	return !st.ExpiresAt.IsZero() && now.After(st.ExpiresAt)
}

// unixMilli is t in unix milliseconds, or 0 for the zero time.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
