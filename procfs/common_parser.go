// Common definitions for all parsers

package procfs

// The data source is the /proc file system, so the source is text. For
// efficiency purposes each file is read in one go, into a pooled buffer, and
// parsed by scanning it one byte at the time. The following arrays provide a
// convenient lookup for deciding whether a byte is a whitespace or not:
var isWhitespace = [256]bool{
	' ':  true,
	'\t': true,
}

var isWhitespaceNl = [256]bool{
	' ':  true,
	'\t': true,
	'\n': true,
}

// Hex digit values, 0xff for non hex bytes:
var hexDigit = func() (tbl [256]byte) {
	for i := 0; i < 256; i++ {
		tbl[i] = 0xff
	}
	for c := '0'; c <= '9'; c++ {
		tbl[c] = byte(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		tbl[c] = byte(c-'a') + 10
	}
	for c := 'A'; c <= 'F'; c++ {
		tbl[c] = byte(c-'A') + 10
	}
	return
}()

// For error context, the line around buf[pos]; a negative pos means
// mid-line, so scan backwards for the line start first:
func getCurrentLine(buf []byte, pos int) string {
	var lineStart, lineEnd int
	l := len(buf)
	if pos < 0 {
		lineStart, lineEnd = -pos, -pos
		for ; lineStart > 0 && buf[lineStart-1] != '\n'; lineStart-- {
		}
	} else {
		lineStart, lineEnd = pos, pos
	}
	for ; lineEnd < l && buf[lineEnd] != '\n'; lineEnd++ {
	}
	return string(buf[lineStart:lineEnd])
}
