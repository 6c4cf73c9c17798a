// Package codec translates between (sender, body) pairs and the relay's
// wire lines. A wire line is sender + ":" + body with the body carried
// verbatim; decoding splits on the first colon, which keeps bodies with
// colons lossless. A sender name containing the delimiter mis-splits on
// the receiving side; that fragility is part of the wire contract and is
// deliberately not fixed here.
package codec

import (
	"fmt"
	"strings"

	"github.com/emilabos/scrappy-chat/internal/domain"
)

// Delimiter separates the sender from the body on the wire.
const Delimiter = ":"

// Encode builds a wire line from a sender and a raw body.
// The body is not escaped.
func Encode(sender, body string) string {
	return sender + Delimiter + body
}

// Decode splits a wire line on the first delimiter. Lines with no
// delimiter, or with nothing before it, fail with ErrMalformedLine;
// callers log and drop such lines rather than abort.
func Decode(line string) (sender, body string, err error) {
	i := strings.Index(line, Delimiter)
	if i <= 0 {
		return "", "", fmt.Errorf("%w: %q", domain.ErrMalformedLine, line)
	}
	return line[:i], line[i+1:], nil
}
