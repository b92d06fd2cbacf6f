package barcode

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls payload presentation for terminal and text output.
// Raw payload bytes in results are never altered; this is display only.
type CleanOptions struct {
	NormalizeForm   string // "NFC" (default), "NFKC", "NFD", "NFKD", "" to disable
	RemoveZeroWidth bool   // drop zero-width characters
	MarkSeparators  bool   // render ISO 15434 / GS1 separators visibly
	StripControl    bool   // drop remaining non-printable control characters
	Trim            bool   // trim leading/trailing whitespace
}

// DefaultCleanOptions returns the display defaults for decoded payloads.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:   "NFC",
		RemoveZeroWidth: true,
		MarkSeparators:  true,
		StripControl:    true,
		Trim:            true,
	}
}

// separatorMarks makes the structure of ISO 15434 envelopes (PDF417 shipping
// labels, Data Matrix part marks) visible instead of letting the raw bytes
// mangle the terminal.
var separatorMarks = map[rune]string{
	'\x1d': "<GS>",
	'\x1e': "<RS>",
	'\x1c': "<FS>",
	'\x04': "<EOT>",
}

// CleanPayload prepares a decoded payload for display.
func CleanPayload(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}

	s = applyNormalization(s, opts.NormalizeForm)
	s = applyMarksAndStrip(s, opts)
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

func applyNormalization(s, form string) string {
	switch strings.ToUpper(form) {
	case "NFC", "":
		return norm.NFC.String(s)
	case "NFKC":
		return norm.NFKC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

func applyMarksAndStrip(s string, opts CleanOptions) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if opts.RemoveZeroWidth && isZeroWidth(r) {
			continue
		}
		if mark, ok := separatorMarks[r]; ok && opts.MarkSeparators {
			b.WriteString(mark)
			continue
		}
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if opts.StripControl && unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isZeroWidth(r rune) bool {
	switch r {
	case '​', // ZERO WIDTH SPACE
		'‌', // ZERO WIDTH NON-JOINER
		'‍', // ZERO WIDTH JOINER
		'\ufeff': // ZERO WIDTH NO-BREAK SPACE (BOM)
		return true
	}
	return false
}

// IsMostlyPrintable reports whether a payload is reasonable to print as
// text. Payloads failing this are better shown hex-encoded.
func IsMostlyPrintable(s string) bool {
	if s == "" {
		return true
	}
	var printable, total int
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		} else if _, ok := separatorMarks[r]; ok {
			printable++
		}
	}
	return float64(printable)/float64(total) >= 0.9
}
