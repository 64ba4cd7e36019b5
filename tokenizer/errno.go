package tokenizer

// Errno is the tokenizer's error code. Once set to anything but OK, Execute refuses to
// consume any data until the tokenizer is reset (or resumed, in case of Paused).
type Errno uint8

const (
	OK Errno = iota
	Paused
	InvalidEOFState
	ClosedConnection
	HeaderOverflow
	InvalidMethod
	InvalidURL
	InvalidVersion
	InvalidStatus
	InvalidHeaderToken
	InvalidConstant
	InvalidContentLength
	UnexpectedContentLength
	InvalidTransferEncoding
	InvalidChunk
)

var errnoNames = [...]string{
	OK:                      "OK",
	Paused:                  "PAUSED",
	InvalidEOFState:         "INVALID_EOF_STATE",
	ClosedConnection:        "CLOSED_CONNECTION",
	HeaderOverflow:          "HEADER_OVERFLOW",
	InvalidMethod:           "INVALID_METHOD",
	InvalidURL:              "INVALID_URL",
	InvalidVersion:          "INVALID_VERSION",
	InvalidStatus:           "INVALID_STATUS",
	InvalidHeaderToken:      "INVALID_HEADER_TOKEN",
	InvalidConstant:         "INVALID_CONSTANT",
	InvalidContentLength:    "INVALID_CONTENT_LENGTH",
	UnexpectedContentLength: "UNEXPECTED_CONTENT_LENGTH",
	InvalidTransferEncoding: "INVALID_TRANSFER_ENCODING",
	InvalidChunk:            "INVALID_CHUNK",
}

// String returns the error name, e.g. INVALID_METHOD.
func (e Errno) String() string {
	if int(e) >= len(errnoNames) {
		return "UNKNOWN"
	}

	return errnoNames[e]
}
