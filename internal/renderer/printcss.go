package renderer

import "strings"

// printCSS is applied to every document after its own styles.
const printCSS = `
* {
  -webkit-print-color-adjust: exact !important;
  print-color-adjust: exact !important;
}
h1, h2, h3, h4, h5, h6 {
  page-break-after: avoid;
  break-after: avoid;
}
table, figure, ul, ol, dl, tr {
  page-break-inside: avoid;
  break-inside: avoid;
}
p {
  orphans: 3;
  widows: 3;
}
@page {
  margin: 0.5in;
}
body {
  font-family: 'Arial', 'Helvetica Neue', Helvetica, sans-serif;
  font-size: 11pt;
  line-height: 1.45;
  color: #222;
  -webkit-font-smoothing: antialiased;
}
img {
  max-width: 100%;
  height: auto;
  display: inline-block;
}
`

// withPrintCSS appends the print stylesheet so it follows any template styles.
func withPrintCSS(html string) string {
	tag := "<style>" + printCSS + "</style>"
	lower := strings.ToLower(html)
	if i := strings.LastIndex(lower, "</head>"); i >= 0 {
		return html[:i] + tag + html[i:]
	}
	return html + tag
}
