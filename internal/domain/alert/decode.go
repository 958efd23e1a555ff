package alert

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	apperrors "github.com/target/txalert/internal/errors"
)

// DecodePayload decodes base64 transport text into a JSON object.
// Numbers are kept as json.Number so 18-digit wei amounts survive intact.
func DecodePayload(data string) (map[string]any, error) {
	raw, err := decodeBase64(strings.TrimSpace(data))
	if err != nil {
		return nil, apperrors.Decode(err, "decode payload base64")
	}
	if !utf8.Valid(raw) {
		return nil, apperrors.Decode(errors.New("payload is not valid UTF-8"), "decode payload text")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.Decode(err, "decode payload JSON")
	}
	if doc == nil {
		return nil, apperrors.Decode(errors.New("payload is null"), "decode payload JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.Decode(fmt.Errorf("unexpected data after JSON object"), "decode payload JSON")
	}
	return doc, nil
}

// Parse decodes and classifies a transport payload in one step.
func Parse(data string) (Event, error) {
	doc, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return Classify(doc)
}

func decodeBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
