package scanner

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/cortenjs/corten/lang/token"
)

// shortString scans a single- or double-quoted string literal. It returns
// the raw source text (including quotes) and the decoded value as UTF-16
// code units. Escapes are decoded directly into code units without merging
// surrogate pairs or replacing unpaired ones: well-formedness is a property
// the object model inspects later, not something the lexer enforces.
func (s *Scanner) shortString(quote rune) (string, []uint16) {
	pos := s.pos()
	start := s.off
	s.advance() // opening quote

	s.sb = s.sb[:0]
	for {
		switch s.cur {
		case -1, '\n':
			s.error(pos, "string literal not terminated")
			return string(s.src[start:s.off]), append([]uint16(nil), s.sb...)

		case quote:
			s.advance()
			return string(s.src[start:s.off]), append([]uint16(nil), s.sb...)

		case '\\':
			s.advance()
			s.escape(pos)

		default:
			s.writeRune(s.cur)
			s.advance()
		}
	}
}

func (s *Scanner) writeRune(r rune) {
	if r < utf8.RuneSelf {
		s.sb = append(s.sb, uint16(r))
		return
	}
	s.sb = utf16.AppendRune(s.sb, r)
}

// escape decodes a single escape sequence, s.cur being the character right
// after the backslash. It leaves s positioned right after the sequence.
func (s *Scanner) escape(pos token.Position) {
	switch s.cur {
	case 'n':
		s.sb = append(s.sb, '\n')
		s.advance()
	case 't':
		s.sb = append(s.sb, '\t')
		s.advance()
	case 'r':
		s.sb = append(s.sb, '\r')
		s.advance()
	case 'b':
		s.sb = append(s.sb, '\b')
		s.advance()
	case 'f':
		s.sb = append(s.sb, '\f')
		s.advance()
	case 'v':
		s.sb = append(s.sb, '\v')
		s.advance()
	case '0':
		s.sb = append(s.sb, 0)
		s.advance()
	case '\\', '\'', '"':
		s.sb = append(s.sb, uint16(s.cur))
		s.advance()
	case '\n':
		// line continuation: escaped newline contributes no code unit
		s.advance()
	case 'x':
		s.advance()
		v := s.hexValue(2, pos)
		s.sb = append(s.sb, uint16(v))
	case 'u':
		s.advance()
		if s.cur == '{' {
			s.advance()
			v := 0
			for s.cur != '}' && s.cur != -1 {
				v = v*16 + hexDigitValue(s.cur)
				s.advance()
			}
			if s.cur == '}' {
				s.advance()
			}
			// append as one or two UTF-16 units depending on the code point.
			s.sb = utf16.AppendRune(s.sb, rune(v))
		} else {
			v := s.hexValue(4, pos)
			// append the raw code unit: may be an unpaired surrogate, which
			// is intentional (see shortString).
			s.sb = append(s.sb, uint16(v))
		}
	default:
		s.errorf(pos, "unknown escape sequence \\%c", s.cur)
		s.sb = append(s.sb, uint16(s.cur))
		s.advance()
	}
}

func (s *Scanner) hexValue(n int, pos token.Position) int {
	v := 0
	for i := 0; i < n; i++ {
		if !isHexDigit(s.cur) {
			s.error(pos, "invalid hex escape sequence")
			break
		}
		v = v*16 + hexDigitValue(s.cur)
		s.advance()
	}
	return v
}

func hexDigitValue(r rune) int {
	switch {
	case '0' <= r && r <= '9':
		return int(r - '0')
	case 'a' <= r && r <= 'f':
		return int(r-'a') + 10
	case 'A' <= r && r <= 'F':
		return int(r-'A') + 10
	}
	return 0
}
