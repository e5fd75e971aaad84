package extract

import (
	"fmt"
	"regexp"
)

// openDocumentContentPath is the main content entry of ODF packages (.odp, .ods, .odt).
const openDocumentContentPath = "content.xml"

// odfText matches leaf text:p, text:h and text:span elements in document order.
var odfText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)

var (
	odpPage  = regexp.MustCompile(`(?s)<draw:page(?:\s[^>]*)?>(.*?)</draw:page>`)
	odsTable = regexp.MustCompile(`(?s)<table:table(?:\s[^>]*)?>(.*?)</table:table>`)
)

// extractOpenDocument reads content.xml. When pageRe is set, each match becomes
// its own page (slides, sheets); otherwise the whole body is one page.
func extractOpenDocument(content []byte, pageRe *regexp.Regexp) ([]string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return nil, err
	}
	data, ok, err := readZipEntry(zr, openDocumentContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract OpenDocument: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("extract OpenDocument: %s not found", openDocumentContentPath)
	}
	xml := string(data)
	if pageRe != nil {
		if parts := pageRe.FindAllStringSubmatch(xml, -1); len(parts) > 0 {
			pages := make([]string, len(parts))
			for i, p := range parts {
				pages[i] = collectText(odfText, p[1])
			}
			return pages, nil
		}
	}
	return []string{collectText(odfText, xml)}, nil
}
