package documents

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/disintegration/imaging"
)

const (
	logoMaxWidth  = 480
	logoMaxHeight = 160
)

// LoadLogo reads an image file, fits it inside the header box and returns it
// as a PNG data URI so the printed HTML needs no external resources.
func LoadLogo(path string) (template.URL, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open logo: %w", err)
	}
	fitted := imaging.Fit(img, logoMaxWidth, logoMaxHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode logo: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
