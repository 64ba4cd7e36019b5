package tokenizer

// tchar as of RFC 9110, 5.6.2
var isToken = func() (table [256]bool) {
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}

	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
		table[c-'a'+'A'] = true
	}

	for _, c := range "!#$%&'*+-.^_`|~" {
		table[c] = true
	}

	return table
}()

func isURLChar(c byte) bool {
	return c > ' ' && c != 0x7f
}

// isValueChar accepts field-vchar, SP and HTAB. obs-text is allowed as well.
func isValueChar(c byte) bool {
	return c == '\t' || (c >= ' ' && c != 0x7f)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
