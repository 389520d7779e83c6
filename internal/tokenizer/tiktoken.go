package tokenizer

import (
	tiktoken "github.com/pkoukk/tiktoken-go"
	"github.com/rotisserie/eris"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "o200k_base"

// TiktokenEncodings are the BPE encodings registered by Default.
var TiktokenEncodings = []string{
	"o200k_base",
	"cl100k_base",
	"p50k_base",
	"p50k_edit",
	"r50k_base",
}

// TiktokenCounter counts BPE tokens with a tiktoken encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding.
func NewTiktoken(name string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, eris.Wrapf(err, "tokenizer: get encoding %s", name)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// TiktokenFactory returns a Factory that loads name on first use.
func TiktokenFactory(name string) Factory {
	return func() (Counter, error) {
		return NewTiktoken(name)
	}
}

// Count returns the number of BPE tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
