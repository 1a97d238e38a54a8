package ownmapimg

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/jamesrr39/goutil/errorsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	CharsetASCII  = "ascii"
	CharsetLatin1 = "latin1"

	// labels are referenced with 3 bytes, and the top bit is used as a terminator in the network section
	maxLabelOffset = 0x7fffff
)

// Label is a string stored in a label table
type Label struct {
	text   string
	offset uint32
}

func (l *Label) Text() string {
	return l.text
}

// Offset is the position of the label in the label section
func (l *Label) Offset() uint32 {
	return l.offset
}

// LabelTable stores each distinct label once, 0x00 terminated.
// Offset 0 holds an empty label, which is used by unnamed elements.
type LabelTable struct {
	writer     *SectionWriter
	encoder    *encoding.Encoder
	forceUpper bool
	labels     map[string]*Label
}

func NewLabelTable(charset string, forceUpper bool) (*LabelTable, errorsx.Error) {
	encoder, err := newCharsetEncoder(charset)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	writer := NewSectionWriter(SectionNameLBL)
	writer.Put(0)

	return &LabelTable{
		writer:     writer,
		encoder:    encoder,
		forceUpper: forceUpper,
		labels:     map[string]*Label{"": {"", 0}},
	}, nil
}

// IsValidCharset reports whether charset is understood by NewLabelTable
func IsValidCharset(charset string) bool {
	_, err := newCharsetEncoder(charset)
	return err == nil
}

func newCharsetEncoder(charset string) (*encoding.Encoder, errorsx.Error) {
	switch strings.ToLower(charset) {
	case CharsetASCII, "":
		// strip accents, then replace anything left that isn't ascii
		return &encoding.Encoder{
			Transformer: transform.Chain(
				norm.NFD,
				runes.Remove(runes.In(unicode.Mn)),
				runes.Map(func(r rune) rune {
					if r > unicode.MaxASCII {
						return '?'
					}
					return r
				}),
			),
		}, nil
	case CharsetLatin1, "iso-8859-1":
		return encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()), nil
	}

	codePageStr := strings.TrimPrefix(strings.ToLower(charset), "cp")
	codePage, err := strconv.Atoi(codePageStr)
	if err != nil {
		return nil, errorsx.Errorf("unknown charset: %q", charset)
	}

	codePageMap, ok := codePageCharmaps[codePage]
	if !ok {
		return nil, errorsx.Errorf("unsupported code page: %d", codePage)
	}

	return encoding.ReplaceUnsupported(codePageMap.NewEncoder()), nil
}

var codePageCharmaps = map[int]*charmap.Charmap{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	866:  charmap.CodePage866,
	1250: charmap.Windows1250,
	1251: charmap.Windows1251,
	1252: charmap.Windows1252,
	1253: charmap.Windows1253,
	1254: charmap.Windows1254,
	1255: charmap.Windows1255,
	1256: charmap.Windows1256,
	1257: charmap.Windows1257,
	1258: charmap.Windows1258,
}

// Add returns the label for text, adding it to the table if it isn't there yet
func (lt *LabelTable) Add(text string) (*Label, errorsx.Error) {
	text = strings.TrimSpace(text)
	if lt.forceUpper {
		text = strings.ToUpper(text)
	}

	label, ok := lt.labels[text]
	if ok {
		return label, nil
	}

	encoded, err := lt.encoder.String(text)
	if err != nil {
		return nil, errorsx.Wrap(err, "label", text)
	}

	offset := lt.writer.Len()
	if offset > maxLabelOffset {
		return nil, errorsx.Errorf("label table is full: offset 0x%x is too large for label %q", offset, text)
	}

	lt.writer.SeekToEnd()
	lt.writer.PutBytes([]byte(encoded))
	lt.writer.Put(0)

	label = &Label{text, uint32(offset)}
	lt.labels[text] = label
	return label, nil
}

func (lt *LabelTable) Count() int {
	return len(lt.labels) - 1
}

func (lt *LabelTable) Section() *SectionWriter {
	return lt.writer
}
