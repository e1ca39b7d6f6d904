package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const openDocumentContentPath = "content.xml"

// extractOpenDocument reads content.xml of an .odp or .ods package. Each text:p is one
// line; text:h becomes a markdown heading at its outline level.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	contentXML, err := readZipFile(zr, openDocumentContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", openDocumentContentPath)
	}

	dec := xml.NewDecoder(bytes.NewReader(contentXML))
	var (
		out   strings.Builder
		para  strings.Builder
		depth int
		level int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract OpenDocument: parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				if depth == 0 {
					para.Reset()
					level = 0
					if t.Name.Local == "h" {
						level = 1
						if n, err := strconv.Atoi(attrValue(t, "outline-level")); err == nil && n > 0 {
							level = min(n, 6)
						}
					}
				}
				depth++
			case "s", "tab":
				if depth > 0 {
					para.WriteByte(' ')
				}
			case "line-break":
				if depth > 0 {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "h" {
				depth--
				if depth == 0 {
					writeLine(&out, para.String(), level)
				}
			}
		case xml.CharData:
			if depth > 0 {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
