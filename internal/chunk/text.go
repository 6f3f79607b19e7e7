package chunk

import (
	"bytes"
	"unicode/utf8"

	"spng.adpollak.net/internal/oops"
)

type TextType uint8

const (
	TextPlain TextType = iota + 1 // tEXt
	TextCompressed                // zTXt
	TextInternational             // iTXt
)

func (t TextType) String() string {
	switch t {
	case TextPlain:
		return "tEXt"
	case TextCompressed:
		return "zTXt"
	case TextInternational:
		return "iTXt"
	}
	return "text"
}

// Text is a decoded tEXt, zTXt or iTXt chunk. Text is UTF-8 for iTXt and
// Latin-1 bytes otherwise.
type Text struct {
	Type              TextType
	Keyword           string
	Text              string
	CompressionFlag   bool
	CompressionMethod uint8
	LanguageTag       string
	TranslatedKeyword string
}

// inflateFunc decompresses a zlib payload, enforcing a size limit.
type inflateFunc func(data []byte) ([]byte, error)

// validKeyword checks the keyword rules shared by text, iCCP and sPLT: 1 to
// 79 printable Latin-1 characters, no leading, trailing or doubled spaces.
func validKeyword(k []byte) bool {
	if len(k) == 0 || len(k) > 79 {
		return false
	}
	if k[0] == ' ' || k[len(k)-1] == ' ' || bytes.Contains(k, []byte("  ")) {
		return false
	}
	for _, c := range k {
		if !(c >= 32 && c <= 126 || c >= 161) {
			return false
		}
	}
	return true
}

func splitKeyword(data []byte, code oops.Code) (string, []byte, error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 || !validKeyword(data[:i]) {
		return "", nil, oops.Newc(oops.FormatError, code)
	}
	return string(data[:i]), data[i+1:], nil
}

func ParseTEXT(data []byte) (*Text, error) {
	keyword, rest, err := splitKeyword(data, oops.CodeTextKeyword)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(rest, 0) >= 0 {
		return nil, oops.New(oops.FormatError, oops.CodeText, nil, "NUL in text of %q", keyword)
	}
	return &Text{Type: TextPlain, Keyword: keyword, Text: string(rest)}, nil
}

func ParseZTXT(data []byte, inflate inflateFunc) (*Text, error) {
	keyword, rest, err := splitKeyword(data, oops.CodeTextKeyword)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, oops.New(oops.FormatError, oops.CodeZTXt, nil, "%q truncated", keyword)
	}
	if rest[0] != 0 {
		return nil, oops.New(oops.FormatError, oops.CodeZTXtCompressionMethod, nil, "method %d", rest[0])
	}
	text, err := inflate(rest[1:])
	if err != nil {
		return nil, err
	}
	return &Text{Type: TextCompressed, Keyword: keyword, Text: string(text), CompressionFlag: true}, nil
}

func ParseITXT(data []byte, inflate inflateFunc) (*Text, error) {
	keyword, rest, err := splitKeyword(data, oops.CodeTextKeyword)
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 {
		return nil, oops.New(oops.FormatError, oops.CodeITXt, nil, "%q truncated", keyword)
	}
	flag, method := rest[0], rest[1]
	rest = rest[2:]
	if flag > 1 {
		return nil, oops.New(oops.FormatError, oops.CodeITXtCompressionFlag, nil, "flag %d", flag)
	}
	if method != 0 {
		return nil, oops.New(oops.FormatError, oops.CodeITXtCompressionMethod, nil, "method %d", method)
	}

	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return nil, oops.Newc(oops.FormatError, oops.CodeITXtLangTag)
	}
	lang := rest[:i]
	rest = rest[i+1:]

	i = bytes.IndexByte(rest, 0)
	if i < 0 || !utf8.Valid(rest[:i]) {
		return nil, oops.Newc(oops.FormatError, oops.CodeITXtTranslatedKey)
	}
	translated := rest[:i]
	text := rest[i+1:]

	if flag == 1 {
		if text, err = inflate(text); err != nil {
			return nil, err
		}
	}
	if !utf8.Valid(text) {
		return nil, oops.New(oops.FormatError, oops.CodeITXt, nil, "text of %q is not UTF-8", keyword)
	}
	return &Text{
		Type:              TextInternational,
		Keyword:           keyword,
		Text:              string(text),
		CompressionFlag:   flag == 1,
		CompressionMethod: method,
		LanguageTag:       string(lang),
		TranslatedKeyword: string(translated),
	}, nil
}

func ParseICCP(data []byte, inflate inflateFunc) (*ICCProfile, error) {
	name, rest, err := splitKeyword(data, oops.CodeICCPName)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, oops.New(oops.FormatError, oops.CodeChunkSize, nil, "iCCP %q truncated", name)
	}
	if rest[0] != 0 {
		return nil, oops.New(oops.FormatError, oops.CodeICCPCompressionMethod, nil, "method %d", rest[0])
	}
	profile, err := inflate(rest[1:])
	if err != nil {
		return nil, err
	}
	return &ICCProfile{Name: name, Profile: profile}, nil
}
