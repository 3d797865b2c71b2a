package rpp

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Node is an element of a chunk: either a *Chunk or a *Line.
type Node interface {
	node()
}

// Line is an attribute line inside a chunk, stored without indentation.
type Line struct {
	Raw string
}

func (*Line) node() {}

// NewLine builds a line from tokens, quoting them as needed.
func NewLine(tokens ...string) *Line {
	return &Line{Raw: Join(tokens)}
}

// Fields splits the line into tokens (see Fields).
func (l *Line) Fields() []string {
	return Fields(l.Raw)
}

// Key returns the first token of the line, e.g. "POSITION".
func (l *Line) Key() string {
	key, _, _ := strings.Cut(l.Raw, " ")
	return key
}

// Chunk is a "<NAME params ... >" block.
type Chunk struct {
	// Header is the text after "<" on the opening line, kept verbatim.
	Header string

	// Children holds the nested chunks and lines in file order.
	Children []Node
}

func (*Chunk) node() {}

// NewChunk builds a chunk whose header is formed from tokens.
func NewChunk(tokens ...string) *Chunk {
	return &Chunk{Header: Join(tokens)}
}

// Name returns the chunk type, e.g. "TRACK" or "SOURCE".
func (c *Chunk) Name() string {
	name, _, _ := strings.Cut(c.Header, " ")
	return name
}

// Params returns the header tokens after the name.
func (c *Chunk) Params() []string {
	f := Fields(c.Header)
	if len(f) <= 1 {
		return nil
	}
	return f[1:]
}

// Chunks returns the direct child chunks with the given name, in order.
func (c *Chunk) Chunks(name string) []*Chunk {
	var out []*Chunk
	for _, n := range c.Children {
		if ch, ok := n.(*Chunk); ok && ch.Name() == name {
			out = append(out, ch)
		}
	}
	return out
}

// Chunk returns the first direct child chunk with the given name, or nil.
func (c *Chunk) Chunk(name string) *Chunk {
	for _, n := range c.Children {
		if ch, ok := n.(*Chunk); ok && ch.Name() == name {
			return ch
		}
	}
	return nil
}

// Line returns the first direct child line with the given key, or nil.
func (c *Chunk) Line(key string) *Line {
	for _, n := range c.Children {
		if l, ok := n.(*Line); ok && l.Key() == key {
			return l
		}
	}
	return nil
}

// Value returns the first parameter of the line with the given key.
func (c *Chunk) Value(key string) (string, bool) {
	l := c.Line(key)
	if l == nil {
		return "", false
	}
	f := l.Fields()
	if len(f) < 2 {
		return "", true
	}
	return f[1], true
}

// Set replaces the line with the given key, or appends it when missing.
func (c *Chunk) Set(key string, values ...string) {
	line := NewLine(append([]string{key}, values...)...)
	for i, n := range c.Children {
		if l, ok := n.(*Line); ok && l.Key() == key {
			c.Children[i] = line
			return
		}
	}
	c.Children = append(c.Children, line)
}

// Append adds nodes at the end of the chunk.
func (c *Chunk) Append(nodes ...Node) {
	c.Children = append(c.Children, nodes...)
}

// InsertBefore inserts node before the first child chunk named before.
// When there is no such child the node is appended.
func (c *Chunk) InsertBefore(before string, node Node) {
	for i, n := range c.Children {
		if ch, ok := n.(*Chunk); ok && ch.Name() == before {
			c.Children = append(c.Children[:i], append([]Node{node}, c.Children[i:]...)...)
			return
		}
	}
	c.Children = append(c.Children, node)
}

// InsertAfterLast inserts node after the last child chunk named after.
// When there is no such child the node is appended.
func (c *Chunk) InsertAfterLast(after string, node Node) {
	idx := -1
	for i, n := range c.Children {
		if ch, ok := n.(*Chunk); ok && ch.Name() == after {
			idx = i
		}
	}
	if idx < 0 {
		c.Children = append(c.Children, node)
		return
	}
	c.Children = append(c.Children[:idx+1], append([]Node{node}, c.Children[idx+1:]...)...)
}

// Parse reads an RPP document and returns its root chunk.
func Parse(r io.Reader) (*Chunk, error) {
	scanner := bufio.NewScanner(r)
	// Embedded plugin state (base64 lines) can be long.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var root *Chunk
	var stack []*Chunk
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		// Only indentation is dropped; trailing spaces can be content
		// (e.g. "|" lines of NOTES).
		text := strings.TrimLeft(strings.TrimSuffix(scanner.Text(), "\r"), " \t")

		switch {
		case strings.HasPrefix(text, "<"):
			ch := &Chunk{Header: text[1:]}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("line %d: content after the root chunk", lineNo)
				}
				root = ch
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, ch)
			}
			stack = append(stack, ch)

		case strings.TrimSpace(text) == ">":
			if len(stack) == 0 {
				return nil, fmt.Errorf("line %d: unbalanced '>'", lineNo)
			}
			stack = stack[:len(stack)-1]

		default:
			if len(stack) == 0 {
				if strings.TrimSpace(text) == "" {
					continue
				}
				return nil, fmt.Errorf("line %d: content outside of a chunk", lineNo)
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Line{Raw: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if root == nil {
		return nil, fmt.Errorf("no chunk found")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unterminated chunk <%s", stack[len(stack)-1].Name())
	}
	return root, nil
}

// Write serializes the chunk tree with REAPER's two-space indentation.
func Write(w io.Writer, root *Chunk) error {
	bw := bufio.NewWriter(w)
	writeChunk(bw, root, 0)
	return bw.Flush()
}

func writeChunk(w *bufio.Writer, c *Chunk, depth int) {
	indent := strings.Repeat("  ", depth)
	w.WriteString(indent + "<" + c.Header + "\n")
	for _, n := range c.Children {
		switch v := n.(type) {
		case *Chunk:
			writeChunk(w, v, depth+1)
		case *Line:
			w.WriteString(indent + "  " + v.Raw + "\n")
		}
	}
	w.WriteString(indent + ">\n")
}

// Fields splits an RPP line into tokens. Tokens are separated by spaces;
// a token that starts with ", ' or ` extends to the next occurrence of the
// same quote character, and the quotes are removed.
func Fields(s string) []string {
	var out []string
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}

		if q := s[i]; q == '"' || q == '\'' || q == '`' {
			end := strings.IndexByte(s[i+1:], q)
			if end < 0 {
				// Unterminated quote: take the rest of the line.
				out = append(out, s[i+1:])
				break
			}
			out = append(out, s[i+1:i+1+end])
			i += end + 2
			continue
		}

		start := i
		for i < len(s) && s[i] != ' ' && s[i] != '\t' {
			i++
		}
		out = append(out, s[start:i])
	}
	return out
}

// Quote returns s in a form Fields reads back as a single token.
// REAPER picks the first quote character that does not occur in the
// string; strings containing all three get their backticks replaced.
func Quote(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\"'`") {
		return s
	}
	switch {
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, "`"):
		return "`" + s + "`"
	default:
		return "`" + strings.ReplaceAll(s, "`", "'") + "`"
	}
}

// Join quotes each token and joins them with spaces.
func Join(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = Quote(t)
	}
	return strings.Join(parts, " ")
}
