package at

// Pattern is one of the terminators the Matcher recognizes.
type Pattern int

const (
	PatternError  Pattern = iota // \r\nERROR\r\n
	PatternOK                    // \r\nOK\r\n
	PatternSendOK                // \r\nSEND OK\r\n
	PatternClosed                // CLOSED\r\n

	NumPatterns
)

var patterns = [NumPatterns]string{
	PatternError:  TermError,
	PatternOK:     TermOK,
	PatternSendOK: TermSendOK,
	PatternClosed: TermClosed,
}

// fallback[p][k] is the length of the longest proper prefix of pattern p
// that is also a suffix of its first k+1 bytes.
var fallback [NumPatterns][]int

func init() {
	for i, p := range patterns {
		f := make([]int, len(p))
		k := 0
		for j := 1; j < len(p); j++ {
			for k > 0 && p[j] != p[k] {
				k = f[k-1]
			}
			if p[j] == p[k] {
				k++
			}
			f[j] = k
		}
		fallback[i] = f
	}
}

func (p Pattern) String() string {
	switch p {
	case PatternError:
		return "ERROR"
	case PatternOK:
		return "OK"
	case PatternSendOK:
		return "SEND OK"
	case PatternClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Len returns the byte length of the terminator.
func (p Pattern) Len() int {
	return len(patterns[p])
}

// Matcher recognizes terminators in a byte stream fed one byte at a time.
// For every pattern it keeps the length of the pattern prefix that matches
// the tail of the stream. When a mismatch occurs the counter falls back to
// the longest prefix that is still a suffix of what was seen, so a false
// start never hides a real terminator that overlaps it.
//
// The zero value is ready to use.
type Matcher struct {
	progress [NumPatterns]int
}

// Feed advances every counter with c. When a pattern completes it is
// returned with true and all counters are cleared; patterns after it in
// the table do not see c.
func (m *Matcher) Feed(c byte) (Pattern, bool) {
	for i := range patterns {
		p := patterns[i]
		k := m.progress[i]
		for k > 0 && p[k] != c {
			k = fallback[i][k-1]
		}
		if p[k] == c {
			k++
		}
		if k == len(p) {
			m.Reset()
			return Pattern(i), true
		}
		m.progress[i] = k
	}
	return 0, false
}

// Reset clears all counters.
func (m *Matcher) Reset() {
	m.progress = [NumPatterns]int{}
}

// Resync recomputes the counters for a stream whose tail is now tail,
// after bytes were cut out of the buffer the counters described.
func (m *Matcher) Resync(tail []byte) {
	m.Reset()
	if n := maxPatternLen - 1; len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	for _, c := range tail {
		m.Feed(c)
	}
}

// Progress returns a copy of the counters, indexed by Pattern.
func (m *Matcher) Progress() [NumPatterns]int {
	return m.progress
}

var maxPatternLen = func() int {
	n := 0
	for _, p := range patterns {
		n = max(n, len(p))
	}
	return n
}()
