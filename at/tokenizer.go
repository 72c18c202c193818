package at

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Splitter is used for tokenizing the text of a command response. It uses
// the signature of bufio.SplitFunc so it can be directly used with
// bufio.Scanner.
//
// It splits the input by CRLF line endings and also recognizes the send
// prompt (">") at the start of the input.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match send prompt, with the optional trailing space
	if bytes.HasPrefix(data, []byte(Prompt)) {
		n := len(Prompt)
		if len(data) > n && data[n] == ' ' {
			n++
		}
		return n, data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Lines returns the non-empty lines of a response.
func Lines(resp []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(resp))
	scanner.Split(Splitter)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// QueryInt finds the line starting with prefix (for example "+CIPMUX:")
// and parses the integer that follows it. Only the first comma separated
// field is read.
func QueryInt(resp []byte, prefix string) (int, bool) {
	for _, line := range Lines(resp) {
		v, ok := strings.CutPrefix(line, prefix)
		if !ok {
			continue
		}
		v, _, _ = strings.Cut(strings.TrimSpace(v), ",")
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// QueryString is QueryInt for a quoted string value, such as the address
// in `+CIFSR:STAIP,"192.168.1.20"`. The field after the prefix, up to the
// first comma, is matched against key when key is not empty.
func QueryString(resp []byte, prefix, key string) (string, bool) {
	for _, line := range Lines(resp) {
		v, ok := strings.CutPrefix(line, prefix)
		if !ok {
			continue
		}
		if key != "" {
			k, rest, found := strings.Cut(v, ",")
			if !found || k != key {
				continue
			}
			v = rest
		}
		return strings.Trim(strings.TrimSpace(v), `"`), true
	}
	return "", false
}
