package utils

// ShortenLog shortens a hash or public key for log lines, keeping both ends.
func ShortenLog(s string) string {
	return ShortenTo(s, 8)
}

// ShortenTo keeps keep characters on each side of s. Strings that would not
// get shorter are returned unchanged.
func ShortenTo(s string, keep int) string {
	if keep <= 0 || len(s) <= 2*keep+3 {
		return s
	}
	return s[:keep] + "..." + s[len(s)-keep:]
}
