// Package codec converts blob payloads to and from self-describing data URLs.
package codec

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// DefaultMediaType is used when a payload has no declared type.
const DefaultMediaType = "application/octet-stream"

const scheme = "data:"

// wrappedTypeParam carries a media type whose top-level name the data URL
// grammar does not allow (font/*, model/*). Such payloads are encoded as
// DefaultMediaType with the real type in this parameter.
const wrappedTypeParam = "x-media-type"

var dataURLTopLevelTypes = []string{"text", "image", "audio", "video", "application", "message", "multipart"}

// DecodeError reports a malformed data URL.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode data url: %s: %v", e.Reason, e.Err)
	}
	return "decode data url: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err carries a DecodeError.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// NormalizeMediaType lowercases the type and subtype and formats parameters
// canonically. Empty input becomes DefaultMediaType.
func NormalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultMediaType, nil
	}
	mediaType, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("invalid media type %q: %w", raw, err)
	}
	if !strings.Contains(mediaType, "/") {
		return "", fmt.Errorf("invalid media type %q: expected type/subtype", raw)
	}
	formatted := mime.FormatMediaType(mediaType, params)
	if formatted == "" {
		return "", fmt.Errorf("invalid media type %q", raw)
	}
	return formatted, nil
}

// ResolveMediaType returns the first candidate that normalizes cleanly, or
// DefaultMediaType when none does. Blank candidates are skipped.
func ResolveMediaType(candidates ...string) string {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if normalized, err := NormalizeMediaType(candidate); err == nil {
			return normalized
		}
	}
	return DefaultMediaType
}

// EncodeBlob renders payload as a base64 data URL.
func EncodeBlob(payload []byte, mediaType string) (string, error) {
	normalized, err := NormalizeMediaType(mediaType)
	if err != nil {
		return "", err
	}
	base, params, err := mime.ParseMediaType(normalized)
	if err != nil {
		return "", err
	}

	if !encodableTopLevel(base) {
		params = map[string]string{wrappedTypeParam: normalized}
		base = DefaultMediaType
	}

	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, k, v)
	}
	if payload == nil {
		payload = []byte{}
	}
	return dataurl.New(payload, base, pairs...).String(), nil
}

// DecodeBlob parses a data URL produced by EncodeBlob or any RFC 2397 source.
// Both base64 and percent-encoded bodies are accepted.
func DecodeBlob(text string) ([]byte, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", &DecodeError{Reason: "empty input"}
	}
	if !strings.HasPrefix(text, scheme) {
		return nil, "", &DecodeError{Reason: "missing data: prefix"}
	}
	if !strings.Contains(text, ",") {
		return nil, "", &DecodeError{Reason: "missing comma separator"}
	}

	du, err := dataurl.DecodeString(text)
	if err != nil {
		return nil, "", &DecodeError{Reason: "malformed body", Err: err}
	}

	mediaType := mime.FormatMediaType(du.MediaType.ContentType(), du.MediaType.Params)
	if wrapped, ok := du.MediaType.Params[wrappedTypeParam]; ok && du.MediaType.ContentType() == DefaultMediaType {
		if normalized, err := NormalizeMediaType(wrapped); err == nil {
			mediaType = normalized
		}
	}
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	payload := du.Data
	if payload == nil {
		payload = []byte{}
	}
	return payload, mediaType, nil
}

func encodableTopLevel(mediaType string) bool {
	top, _, _ := strings.Cut(mediaType, "/")
	if strings.HasPrefix(top, "x-") {
		return true
	}
	for _, allowed := range dataURLTopLevelTypes {
		if top == allowed {
			return true
		}
	}
	return false
}
