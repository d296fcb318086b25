// Package codec selects and applies the body codec for a MIME content type.
//
// Selection works on the parsed media type, so parameters such as
// "charset=utf-8" do not affect the outcome. Only JSON and XML are
// supported; everything else maps to KindUnknown.
package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Kind identifies a body codec.
type Kind int

const (
	KindUnknown Kind = iota
	KindJSON
	KindXML
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindXML:
		return "xml"
	default:
		return "unknown"
	}
}

// ErrUnsupported is returned when no codec handles a content type.
var ErrUnsupported = errors.New("unsupported content type")

// Select maps a Content-Type value to a codec kind.
func Select(contentType string) Kind {
	mediaType := parseMediaType(contentType)
	switch {
	case mediaType == "":
		return KindUnknown
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return KindJSON
	case mediaType == "application/xml", mediaType == "text/xml", strings.HasSuffix(mediaType, "+xml"):
		return KindXML
	}
	return KindUnknown
}

func parseMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Tolerate malformed parameters; the type itself is what matters.
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Encode serializes v with the given codec.
func Encode(kind Kind, v any) ([]byte, error) {
	switch kind {
	case KindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return data, nil
	case KindXML:
		var buf bytes.Buffer
		buf.WriteString(xml.Header)
		if err := xml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("encode xml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, ErrUnsupported
}

// Decode deserializes data into target, which must be a pointer.
func Decode(kind Kind, data []byte, target any) error {
	switch kind {
	case KindJSON:
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		return nil
	case KindXML:
		if err := xml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decode xml: %w", err)
		}
		return nil
	}
	return ErrUnsupported
}
