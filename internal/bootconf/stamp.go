package bootconf

import "time"

// EncodeStamp packs t into the decimal YYYYMMDDhhmmss form (spec.md §3,
// §9 "numeric date encoding"), ported from original_source's
// structtm_to_stamp. The encoding is order-preserving: comparing two
// stamps numerically orders them by time. (internal/discover's migration
// compares time.Time modification times directly, not stamps.)
func EncodeStamp(t time.Time) uint64 {
	u := t.UTC()
	return uint64(u.Year())*1e10 +
		uint64(u.Month())*1e8 +
		uint64(u.Day())*1e6 +
		uint64(u.Hour())*1e4 +
		uint64(u.Minute())*1e2 +
		uint64(u.Second())
}

// DecodeStamp is EncodeStamp's inverse (spec.md §8 property 9:
// decode(encode(t)) = t).
func DecodeStamp(stamp uint64) time.Time {
	if stamp == 0 {
		return time.Time{}
	}
	sec := int(stamp % 100)
	stamp /= 100
	min := int(stamp % 100)
	stamp /= 100
	hour := int(stamp % 100)
	stamp /= 100
	day := int(stamp % 100)
	stamp /= 100
	month := int(stamp % 100)
	stamp /= 100
	year := int(stamp)
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}
