package manifest

import "strings"

const (
	// HeaderMarker is the tag that opens every valid master playlist.
	HeaderMarker = "#EXTM3U"
	// StreamInfMarker opens a variant stream block.
	StreamInfMarker = "#EXT-X-STREAM-INF"
)

// Block is one variant stream entry: the #EXT-X-STREAM-INF line, any
// attribute or comment lines that follow it, and the URI line that closes it.
type Block struct {
	Lines []string
}

// Closed reports whether the block has been terminated by a URI line.
func (b Block) Closed() bool {
	if len(b.Lines) == 0 {
		return false
	}
	last := b.Lines[len(b.Lines)-1]
	return last != "" && !strings.HasPrefix(last, "#")
}

// Document is a parsed master playlist: a single header, any attribute
// lines that precede the first variant block, and the ordered blocks.
type Document struct {
	HasHeader bool
	Preamble  []string
	Blocks    []Block
}

// Parse splits manifest text into header, preamble and variant blocks.
// Line content is preserved verbatim; only structure is recovered.
func Parse(text string) Document {
	var doc Document
	var current *Block

	flush := func() {
		if current != nil {
			doc.Blocks = append(doc.Blocks, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, HeaderMarker):
			doc.HasHeader = true
		case strings.HasPrefix(line, StreamInfMarker):
			flush()
			current = &Block{Lines: []string{line}}
		case current != nil:
			current.Lines = append(current.Lines, line)
			if line != "" && !strings.HasPrefix(line, "#") {
				// URI line terminates the block.
				flush()
			}
		case line != "":
			doc.Preamble = append(doc.Preamble, line)
		}
	}
	flush()
	return doc
}

// Reversed returns a copy of the document with block order inverted.
// Block contents are untouched; this is positional, not a bitrate sort.
func (d Document) Reversed() Document {
	out := Document{
		HasHeader: d.HasHeader,
		Preamble:  append([]string(nil), d.Preamble...),
		Blocks:    make([]Block, 0, len(d.Blocks)),
	}
	for i := len(d.Blocks) - 1; i >= 0; i-- {
		out.Blocks = append(out.Blocks, d.Blocks[i])
	}
	return out
}

// String reassembles the document with a single header line on top.
func (d Document) String() string {
	lines := make([]string, 0, 1+len(d.Preamble)+len(d.Blocks)*2)
	if d.HasHeader {
		lines = append(lines, HeaderMarker)
	}
	lines = append(lines, d.Preamble...)
	for _, b := range d.Blocks {
		lines = append(lines, b.Lines...)
	}
	return strings.Join(lines, "\n")
}

// Reorder reverses the variant block order of a master playlist so the
// last-listed (typically highest) quality comes first. It is total: input
// without a header marker is returned unchanged, and input with a header
// but no variant blocks passes through with only the header normalized.
func Reorder(text string) string {
	doc := Parse(text)
	if !doc.HasHeader {
		return text
	}
	return doc.Reversed().String()
}
