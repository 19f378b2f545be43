package extract

import (
	"strings"

	"github.com/R3E-Network/sfmc-inv2/internal/soaptransport"
)

// soapNodeToRaw flattens a single decoded SOAP Results node into a RawItem,
// taking the first child's text for scalar properties (the common case for
// Retrieve property lists) and recursing is intentionally NOT done here —
// nested complex properties stay addressable via their own Node methods
// where an extractor needs them (see triggered_send.go's Email/List walk).
func soapNodeToRaw(n *soaptransport.Node) RawItem {
	out := RawItem{}
	if n == nil {
		return out
	}
	for name, kids := range n.Children {
		if len(kids) == 0 {
			continue
		}
		if len(kids) == 1 && len(kids[0].Children) == 0 {
			out[name] = kids[0].Text
			continue
		}
		// Repeated or structured children: keep the raw nodes so callers
		// that need structure (e.g. a triggered send's Email/List) can walk them.
		out[name] = kids
	}
	return out
}

// xmlValueEscaper escapes the handful of characters that matter inside a
// SOAP filter's <Value> text node.
var xmlValueEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
