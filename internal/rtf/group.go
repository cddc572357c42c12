package rtf

// destination says whether a group's text belongs to the note.
type destination uint8

const (
	destDocument destination = iota
	destSkip
)

const (
	defaultUnicodeSkip = 1
	maxUnicodeSkip     = 10
)

// groupFrame is the state carried by one open brace. Frames are copied on
// push, so children inherit everything and changes never leak upward.
type groupFrame struct {
	dest     destination
	codepage int
	uc       int
	// fresh is true until the group's first token has been seen; \* only
	// marks an unknown destination in that position.
	fresh bool
}

// conversion is the state of one pass over a document. stack[0] is the
// implicit root; text is only collected once a real group is open.
type conversion struct {
	tok   *Tokenizer
	stack []groupFrame
	out   emitter
	stats *Stats

	// skip counts fallback tokens still to discard after a \u escape.
	skip int

	// closed is set once the outermost group has been closed; nothing after
	// it belongs to the document.
	closed bool

	raw   []byte
	rawCP int
}

func newConversion(data []byte) *conversion {
	stats := &Stats{}
	c := &conversion{
		tok:   newTokenizer(data, stats),
		stats: stats,
	}
	c.stack = append(c.stack, groupFrame{
		dest:     destDocument,
		codepage: DefaultCodePage,
		uc:       defaultUnicodeSkip,
	})
	return c
}

func (c *conversion) top() *groupFrame {
	return &c.stack[len(c.stack)-1]
}

// inDocument reports whether the outermost group has been entered and not yet closed.
func (c *conversion) inDocument() bool {
	return !c.closed && len(c.stack) > 1
}

func (c *conversion) run() {
	for {
		tok := c.tok.Next()
		switch tok.Kind {
		case TokenEOF:
			c.flushBytes()
			c.stats.UnclosedGroups = len(c.stack) - 1
			return
		case TokenGroupOpen:
			c.openGroup()
		case TokenGroupClose:
			c.closeGroup()
		default:
			c.stats.Tokens++
			c.handle(tok)
		}
	}
}

func (c *conversion) openGroup() {
	c.flushBytes()
	c.skip = 0
	if c.closed && len(c.stack) == 1 {
		c.stats.TrailingGroups++
	}
	child := *c.top()
	child.fresh = true
	c.stack = append(c.stack, child)
	c.stats.Groups++
	if depth := len(c.stack) - 1; depth > c.stats.MaxDepth {
		c.stats.MaxDepth = depth
	}
}

func (c *conversion) closeGroup() {
	c.flushBytes()
	c.skip = 0
	if len(c.stack) == 1 {
		c.stats.UnbalancedCloses++
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
	if len(c.stack) == 1 {
		c.closed = true
	}
}

// handle applies one non-structural token to the current group.
func (c *conversion) handle(tok Token) {
	f := c.top()
	fresh := f.fresh
	f.fresh = false
	if !c.inDocument() {
		return
	}

	switch tok.Kind {
	case TokenControlSymbol:
		if tok.Char == '*' {
			if fresh {
				c.markSkip(f)
			}
			return
		}
	case TokenControlWord:
		if isDestination(tok.Name) {
			c.markSkip(f)
			return
		}
		if cp, ok := codePageOf(tok); ok {
			c.flushBytes()
			f.codepage = cp
			return
		}
		if tok.Name == "uc" {
			f.uc = clampSkip(tok.param(defaultUnicodeSkip))
			return
		}
	}

	if f.dest == destSkip {
		return
	}
	if c.skip > 0 {
		c.skip--
		return
	}
	c.resolve(tok, f)
}

func (c *conversion) markSkip(f *groupFrame) {
	if f.dest != destSkip {
		f.dest = destSkip
		c.stats.SkippedGroups++
	}
}

func clampSkip(n int) int {
	if n < 0 {
		return 0
	}
	if n > maxUnicodeSkip {
		return maxUnicodeSkip
	}
	return n
}
