package strcomp

// EqualFold compares two ASCII strings case-insensitively. Non-letters are compared
// loosely, which is fine for header names and tokens.
func EqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}

	return true
}

// HasToken reports whether a comma-separated list contains the token, ignoring case
// and optional whitespace around the elements.
func HasToken(list, token string) bool {
	for len(list) > 0 {
		var elem string
		elem, list = cut(list, ',')
		if EqualFold(trimOWS(elem), token) {
			return true
		}
	}

	return false
}

// LastToken returns the last non-empty element of a comma-separated list.
func LastToken(list string) (last string) {
	for len(list) > 0 {
		var elem string
		elem, list = cut(list, ',')
		if elem = trimOWS(elem); len(elem) > 0 {
			last = elem
		}
	}

	return last
}

func cut(str string, sep byte) (prefix, postfix string) {
	for i := 0; i < len(str); i++ {
		if str[i] == sep {
			return str[:i], str[i+1:]
		}
	}

	return str, ""
}

func trimOWS(str string) string {
	for len(str) > 0 && (str[0] == ' ' || str[0] == '\t') {
		str = str[1:]
	}

	for len(str) > 0 && (str[len(str)-1] == ' ' || str[len(str)-1] == '\t') {
		str = str[:len(str)-1]
	}

	return str
}
