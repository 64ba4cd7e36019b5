package tokenizer

type parserState uint8

const (
	eStartReq parserState = iota + 1
	eStartRes
	eMethod
	eURL
	eReqProto
	eResProto
	eStatusCode
	eStatusCodeSP
	eStatusText
	eLineLF
	eHeaderFieldStart
	eHeaderField
	eHeaderValueOWS
	eHeaderValue
	eHeaderValueLF
	eHeadersLF
	eBodyIdentity
	eBodyIdentityEOF
	eBodyChunked
	eDead
	eUpgraded
)

// inHead reports whether the state belongs to the start line or the header section.
func (s parserState) inHead() bool {
	return s > eStartRes && s < eBodyIdentity
}

type flag uint16

const (
	fChunked flag = 1 << iota
	fContentLength
	fTransferEncoding
	fConnectionClose
	fConnectionKeepAlive
	fUpgrade
	fTrailer
	fSkipBody
)

type trackedHeader uint8

const (
	hOther trackedHeader = iota
	hContentLength
	hTransferEncoding
	hConnection
	hUpgrade
	hTrailer
)
