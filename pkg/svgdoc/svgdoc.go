// Package svgdoc parses outline documents into a small tagged node tree.
//
// A document is a Root holding exactly one Element (the svg container),
// whose children are path Elements optionally carrying a desc Element with a
// Text label. Parsing never interprets geometry; that is left to pathcodec.
package svgdoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NodeKind discriminates the node variants
type NodeKind int

const (
	KindText NodeKind = iota
	KindElement
	KindRoot
)

func (k NodeKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindElement:
		return "element"
	case KindRoot:
		return "root"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is implemented by *Text, *Element and *Root
type Node interface {
	Kind() NodeKind
}

// Text is character data
type Text struct {
	Value string
}

// Element is a tagged element with attributes and children
type Element struct {
	TagName    string
	Properties map[string]string
	Children   []Node
}

// Root is the document node
type Root struct {
	Children []Node
}

func (*Text) Kind() NodeKind    { return KindText }
func (*Element) Kind() NodeKind { return KindElement }
func (*Root) Kind() NodeKind    { return KindRoot }

// ErrMalformedRoot is returned when the document does not have exactly one
// top-level element.
var ErrMalformedRoot = errors.New("svgdoc: root must contain exactly one element")

// Attr returns an attribute value and whether it was present
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Properties == nil {
		return "", false
	}
	v, ok := e.Properties[name]
	return v, ok
}

// FirstChild returns the first child or nil
func (e *Element) FirstChild() Node {
	if e == nil || len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// Elements returns the direct element children with the given tag name
func (e *Element) Elements(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok && el.TagName == tag {
			out = append(out, el)
		}
	}
	return out
}

// Validate checks the single-child root pattern
func (r *Root) Validate() error {
	if r == nil || len(r.Children) != 1 {
		return ErrMalformedRoot
	}
	if _, ok := r.Children[0].(*Element); !ok {
		return ErrMalformedRoot
	}
	return nil
}

// Container returns the single top-level element of a validated root
func (r *Root) Container() (*Element, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r.Children[0].(*Element), nil
}

// Parse decodes data into a node tree. Whitespace-only text, comments,
// processing instructions and directives are dropped. Namespace prefixes
// are discarded from tag and attribute names.
func Parse(data []byte) (*Root, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	root := &Root{}
	var stack []*Element

	appendNode := func(n Node) {
		if len(stack) == 0 {
			root.Children = append(root.Children, n)
			return
		}
		top := stack[len(stack)-1]
		top.Children = append(top.Children, n)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("svgdoc: decode: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				TagName:    t.Name.Local,
				Properties: make(map[string]string, len(t.Attr)),
				Children:   []Node{},
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.Properties[a.Name.Local] = a.Value
			}
			appendNode(el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("svgdoc: unexpected end element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if strings.TrimSpace(string(t)) == "" {
				continue
			}
			appendNode(&Text{Value: string(t)})
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("svgdoc: unclosed element %q", stack[len(stack)-1].TagName)
	}
	return root, nil
}

// ParseString is Parse for string input
func ParseString(s string) (*Root, error) {
	return Parse([]byte(s))
}
