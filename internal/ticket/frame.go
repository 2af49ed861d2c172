package ticket

// Escape sequences understood by the supported thermal printers.
var (
	Init           = []byte{0x1B, 0x40}
	CodepageSelect = []byte{0x1B, 0x74, 0x24}
	Feed           = []byte{0x0A, 0x0A, 0x0A, 0x0A}
	Cut            = []byte{0x1D, 0x56, 0x00}
)

// FrameOverhead is the number of control bytes added around every payload.
var FrameOverhead = len(Init) + len(CodepageSelect) + len(Feed) + len(Cut)

// Frame wraps UTF-8 ticket text into the binary frame sent to the printer:
// INIT, CODEPAGE-SELECT, payload, four feeds, CUT.
func Frame(text string) []byte {
	out := make([]byte, 0, FrameOverhead+len(text))
	out = append(out, Init...)
	out = append(out, CodepageSelect...)
	out = append(out, text...)
	out = append(out, Feed...)
	out = append(out, Cut...)
	return out
}
