package rtf

// resolve turns a visible token into output characters.
func (c *conversion) resolve(tok Token, f *groupFrame) {
	switch tok.Kind {
	case TokenText:
		if tok.Byte < 0x80 && !c.awaitingTrail() {
			c.flushBytes()
			c.out.writeRune(rune(tok.Byte))
			return
		}
		c.decodeByte(tok.Byte, f.codepage)
	case TokenHexByte:
		c.decodeByte(tok.Byte, f.codepage)
	case TokenControlSymbol:
		c.flushBytes()
		if r, ok := symbolRune(tok.Char); ok {
			c.out.writeRune(r)
		}
	case TokenControlWord:
		c.flushBytes()
		if tok.Name == "u" {
			if tok.HasParam {
				c.out.writeUnit(tok.Param)
				c.skip = f.uc
			}
			return
		}
		if r, ok := wordRunes[tok.Name]; ok {
			c.out.writeRune(r)
		}
	}
}

// decodeByte buffers one code page byte and emits it once the character is complete.
func (c *conversion) decodeByte(b byte, cp int) {
	if len(c.raw) > 0 && c.rawCP != cp {
		c.flushBytes()
	}
	c.rawCP = cp
	c.raw = append(c.raw, b)
	if sequenceComplete(cp, c.raw) {
		c.flushBytes()
	}
}

// awaitingTrail reports whether a DBCS lead byte is waiting for its second
// byte, which writers often emit as a literal ASCII character.
func (c *conversion) awaitingTrail() bool {
	return len(c.raw) > 0 && !sequenceComplete(c.rawCP, c.raw)
}

func (c *conversion) flushBytes() {
	if len(c.raw) == 0 {
		return
	}
	c.out.writeString(decodeBytes(c.rawCP, c.raw))
	c.raw = c.raw[:0]
}
