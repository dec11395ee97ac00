package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts model output that may carry markup into a single plain
// paragraph. Entities are decoded and runs of whitespace collapse to one space.
func ToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(html2text.HTML2Text(s)), " ")
}
