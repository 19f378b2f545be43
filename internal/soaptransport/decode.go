package soaptransport

import (
	"encoding/xml"
	"io"
	"strings"
)

// decodeStripped parses a SOAP response into a namespace-stripped Node
// tree: element names become keys, repeated siblings become lists, and
// attributes land on the node's Attrs map.
func decodeStripped(body []byte) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(string(body)))

	root := &Node{Name: "#root", Children: map[string][]*Node{}}
	stack := []*Node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch tt := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Name:     stripNamespace(tt.Name.Local),
				Attrs:    map[string]string{},
				Children: map[string][]*Node{},
			}
			for _, a := range tt.Attr {
				n.Attrs[stripNamespace(a.Name.Local)] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.Children[n.Name] = append(parent.Children[n.Name], n)
			stack = append(stack, n)
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.Text += string(tt)
		case xml.EndElement:
			cur := stack[len(stack)-1]
			cur.Text = strings.TrimSpace(cur.Text)
			stack = stack[:len(stack)-1]
		}
	}
	return root, nil
}

// stripNamespace drops an xmlns prefix if one somehow survives (the decoder
// already resolves Name.Local without a prefix in the common case; this
// guards the rare colon-containing local name some SOAP stacks emit).
func stripNamespace(local string) string {
	if i := strings.LastIndex(local, ":"); i >= 0 {
		return local[i+1:]
	}
	return local
}

// findFirst searches depth-first for the first descendant (or self) node
// with the given name.
func findFirst(n *Node, name string) *Node {
	if n == nil {
		return nil
	}
	if n.Name == name {
		return n
	}
	for _, kids := range n.Children {
		for _, k := range kids {
			if found := findFirst(k, name); found != nil {
				return found
			}
		}
	}
	return nil
}

// collectAll gathers every direct child of n named `name` (used to collect
// repeated <Results> siblings).
func collectAll(n *Node, name string) []*Node {
	if n == nil {
		return nil
	}
	return n.Children[name]
}

// textOf safely reads a node's trimmed character data.
func textOf(n *Node) string {
	if n == nil {
		return ""
	}
	return n.Text
}
