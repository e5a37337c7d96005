package plugincfg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
)

// Document is one parsed routing configuration.
//
// Tree is the parsed XML with PrimaryServers/BackupServers blocks already
// removed; the output template is cut from the first input's Tree. The typed
// slices are detached copies taken in document order.
type Document struct {
	Source   string
	Encoding string // declared in the XML declaration; "" if absent

	Tree *etree.Document

	Clusters    []model.ServerCluster
	VhostGroups []model.VirtualHostGroup
	URIGroups   []model.URIGroup
	Routes      []model.Route

	// Server names listed under PrimaryServers/BackupServers hint blocks.
	PrimaryServers []string
	BackupServers  []string
}

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

const (
	CodeXMLParse    = "XML_PARSE_ERROR"
	CodeUnsupported = "UNSUPPORTED_INPUT"
)

var encodingDecl = regexp.MustCompile(`encoding\s*=\s*["']([^"']+)["']`)

// Parse reads one configuration document. Inputs that carry an
// IntelligentManagement element are rejected: they cannot be merged.
func Parse(source string, data []byte) (*Document, error) {
	tree := etree.NewDocument()
	tree.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    CodeXMLParse,
				Message: "malformed XML",
				Stage:   model.StageParseInput,
				URL:     source,
			},
			Cause: err,
		}
	}
	root := tree.Root()
	if root == nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    CodeXMLParse,
				Message: "document has no root element",
				Stage:   model.StageParseInput,
				URL:     source,
			},
		}
	}
	if root.Tag == model.TagIntelligentManagement || root.FindElement(".//"+model.TagIntelligentManagement) != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    CodeUnsupported,
				Message: "Configurations with IntelligentManagement can not be merged.",
				Stage:   model.StageParseInput,
				URL:     source,
				Snippet: model.TagIntelligentManagement,
			},
		}
	}

	doc := &Document{
		Source:   source,
		Encoding: declaredEncoding(tree),
		Tree:     tree,
	}
	doc.PrimaryServers = liftServerHints(root, model.TagPrimaryServers)
	doc.BackupServers = liftServerHints(root, model.TagBackupServers)

	for _, el := range root.FindElements(".//" + model.TagServerCluster) {
		doc.Clusters = append(doc.Clusters, toServerCluster(el))
	}
	for _, el := range root.FindElements(".//" + model.TagVirtualHostGroup) {
		doc.VhostGroups = append(doc.VhostGroups, toVirtualHostGroup(el))
	}
	for _, el := range root.FindElements(".//" + model.TagURIGroup) {
		doc.URIGroups = append(doc.URIGroups, toURIGroup(el))
	}
	for _, el := range root.FindElements(".//" + model.TagRoute) {
		doc.Routes = append(doc.Routes, model.Route{Node: ToNode(el)})
	}
	return doc, nil
}

func declaredEncoding(tree *etree.Document) string {
	for _, tok := range tree.Child {
		pi, ok := tok.(*etree.ProcInst)
		if !ok || pi.Target != "xml" {
			continue
		}
		if m := encodingDecl.FindStringSubmatch(pi.Inst); m != nil {
			return m[1]
		}
	}
	return ""
}

// liftServerHints records every Name found inside the hint blocks and then
// removes the blocks from the tree.
func liftServerHints(root *etree.Element, tag string) []string {
	var names []string
	blocks := root.FindElements(".//" + tag)
	for _, b := range blocks {
		names = collectNames(b, names)
	}
	for _, b := range blocks {
		if p := b.Parent(); p != nil {
			p.RemoveChild(b)
		}
	}
	return names
}

func collectNames(el *etree.Element, names []string) []string {
	if a := el.SelectAttr(model.AttrName); a != nil {
		names = append(names, a.Value)
	}
	for _, c := range el.ChildElements() {
		names = collectNames(c, names)
	}
	return names
}

// ToNode detaches el and its element subtree.
func ToNode(el *etree.Element) model.Node {
	n := model.Node{Tag: el.FullTag()}
	for i := range el.Attr {
		n.Attrs = append(n.Attrs, model.Attr{Key: el.Attr[i].FullKey(), Value: el.Attr[i].Value})
	}
	n.Text = strings.TrimSpace(el.Text())
	for _, c := range el.ChildElements() {
		n.Children = append(n.Children, ToNode(c))
	}
	return n
}

func toServerCluster(el *etree.Element) model.ServerCluster {
	sc := model.ServerCluster{Node: shallowNode(el)}
	for _, c := range el.ChildElements() {
		switch c.Tag {
		case model.TagServer:
			sc.Servers = append(sc.Servers, model.Server{Node: ToNode(c)})
		case model.TagPrimaryServers, model.TagBackupServers:
			// rebuilt on output
		default:
			sc.Children = append(sc.Children, ToNode(c))
		}
	}
	return sc
}

func toVirtualHostGroup(el *etree.Element) model.VirtualHostGroup {
	g := model.VirtualHostGroup{Node: shallowNode(el)}
	for _, c := range el.ChildElements() {
		if c.Tag == model.TagVirtualHost {
			g.Hosts = append(g.Hosts, model.VirtualHost{Node: ToNode(c)})
			continue
		}
		g.Children = append(g.Children, ToNode(c))
	}
	return g
}

func toURIGroup(el *etree.Element) model.URIGroup {
	g := model.URIGroup{Node: shallowNode(el)}
	for _, c := range el.ChildElements() {
		if c.Tag == model.TagURI {
			g.URIs = append(g.URIs, model.URI{Node: ToNode(c)})
			continue
		}
		g.Children = append(g.Children, ToNode(c))
	}
	return g
}

func shallowNode(el *etree.Element) model.Node {
	n := model.Node{Tag: el.FullTag()}
	for i := range el.Attr {
		n.Attrs = append(n.Attrs, model.Attr{Key: el.Attr[i].FullKey(), Value: el.Attr[i].Value})
	}
	return n
}

// FromNode builds an etree element from n.
func FromNode(n model.Node) *etree.Element {
	el := etree.NewElement(n.Tag)
	for _, a := range n.Attrs {
		el.CreateAttr(a.Key, a.Value)
	}
	if n.Text != "" {
		el.SetText(n.Text)
	}
	for _, c := range n.Children {
		el.AddChild(FromNode(c))
	}
	return el
}
