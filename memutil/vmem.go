package memutil

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// VMEMWord is one word of a vmem file.
type VMEMWord struct {
	// Index is the word address.
	Index int
	// Data is the little-endian word value.
	Data []byte
}

// ParseVMEM reads a vmem file: whitespace-separated hex words, each stored
// at the next word address. "@<hex>" moves the word address. "//" starts a
// comment that runs to the end of the line.
func ParseVMEM(r io.Reader, wordBytes int) ([]VMEMWord, error) {
	var words []VMEMWord
	index := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.Index(text, "//"); i >= 0 {
			text = text[:i]
		}

		for _, tok := range strings.Fields(text) {
			if strings.HasPrefix(tok, "@") {
				addr, err := strconv.ParseUint(tok[1:], 16, 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad address %q", line, tok)
				}
				index = int(addr)
				continue
			}

			data, err := parseHexWord(tok, wordBytes)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			words = append(words, VMEMWord{Index: index, Data: data})
			index++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

// parseHexWord converts a big-endian hex string into wordBytes
// little-endian bytes.
func parseHexWord(tok string, wordBytes int) ([]byte, error) {
	digits := strings.TrimPrefix(strings.ReplaceAll(tok, "_", ""), "0x")
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}

	be, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("bad word %q", tok)
	}

	// Leading zero bytes do not count towards the width.
	for len(be) > wordBytes && be[0] == 0 {
		be = be[1:]
	}
	if len(be) > wordBytes {
		return nil, fmt.Errorf("word %q is wider than %d bits", tok, wordBytes*8)
	}

	le := make([]byte, wordBytes)
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return le, nil
}
