package writer

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/lamim/cardforge/internal/config"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ResolveEncoding maps an output encoding label to an encoder.
// UTF-8 needs no transformation and returns a nil encoding; utf-8-sig adds a BOM.
func ResolveEncoding(name string) (encoding.Encoding, bool, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	switch label {
	case "", "utf-8", "utf8":
		return nil, false, nil
	case "utf-8-sig", "utf8-sig":
		return nil, true, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, false, fmt.Errorf("%w: unsupported output_encoding %q", config.ErrInvalidConfig, name)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return nil, false, nil
	}
	return enc, false, nil
}

// encoderFor substitutes characters the target encoding cannot represent
func encoderFor(enc encoding.Encoding) transform.Transformer {
	return encoding.ReplaceUnsupported(enc.NewEncoder())
}
