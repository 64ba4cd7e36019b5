package status

type Code uint16

// Only the codes affecting message framing are listed. Any other 3-digit code is
// carried as-is.
const (
	Continue           Code = 100 // RFC 9110, 15.2.1
	SwitchingProtocols Code = 101 // RFC 9110, 15.2.2
	Processing         Code = 102 // RFC 2518, 10.1
	EarlyHints         Code = 103 // RFC 8297

	OK        Code = 200 // RFC 9110, 15.3.1
	NoContent Code = 204 // RFC 9110, 15.3.5

	NotModified Code = 304 // RFC 9110, 15.4.5

	BadRequest Code = 400 // RFC 9110, 15.5.1
	NotFound   Code = 404 // RFC 9110, 15.5.5

	InternalServerError Code = 500 // RFC 9110, 15.6.1
)

// Min is the lowest valid status code. The upper bound is implied by the 3-digit format.
const Min Code = 100

// Informational reports whether the code is 1xx.
func (c Code) Informational() bool {
	return c >= 100 && c < 200
}

// Bodyless reports whether a response with this code never carries a body, regardless
// of Content-Length or Transfer-Encoding.
func (c Code) Bodyless() bool {
	return c.Informational() || c == NoContent || c == NotModified
}
