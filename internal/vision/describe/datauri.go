package describe

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURI is returned for photos not in the
// "data:<mimetype>;base64,<data>" form.
var ErrInvalidDataURI = errors.New("invalid photo data URI")

// Image is a decoded camera frame.
type Image struct {
	MIMEType string
	Data     []byte
	// URI is the original data URI, for backends that accept it directly.
	URI string
}

// ParseDataURI decodes a base64 data URI carrying an image.
func ParseDataURI(uri string) (Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return Image{}, fmt.Errorf("%w: payload must be base64", ErrInvalidDataURI)
	}
	if mime == "" || !strings.Contains(mime, "/") {
		return Image{}, fmt.Errorf("%w: missing MIME type", ErrInvalidDataURI)
	}
	if payload == "" {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return Image{MIMEType: mime, Data: data, URI: uri}, nil
}

// Base64 returns the encoded payload without the data URI header.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}
