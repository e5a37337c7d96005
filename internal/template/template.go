package template

import (
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
)

const (
	GeneratorVersion = "v1.0.0.2"
	DefaultEncoding  = "UTF-8"

	headerTimeLayout = "2006.01.02 at 15:04:05 MST"
	keptComment      = "Properties"
)

// Rebuilt from the merged sections, never copied from the first input.
var routingTags = []string{
	model.TagServerCluster,
	model.TagVirtualHostGroup,
	model.TagURIGroup,
	model.TagRoute,
}

type Options struct {
	// Now stamps the header comment. Zero means time.Now().
	Now time.Time
}

// Template is the output skeleton: every element of the first input except
// the routing sections, under a fresh declaration and header comment.
type Template struct {
	Doc      *etree.Document
	Root     *etree.Element
	Encoding string
}

// Build cuts the template out of doc. doc is left untouched.
func Build(doc *plugincfg.Document, opt Options) (*Template, error) {
	if doc == nil || doc.Tree == nil || doc.Tree.Root() == nil {
		return nil, &TemplateError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "template source document is empty",
				Stage:   model.StageRender,
			},
		}
	}

	root := doc.Tree.Root().Copy()
	for _, tag := range routingTags {
		for _, el := range root.FindElements(".//" + tag) {
			if p := el.Parent(); p != nil {
				p.RemoveChild(el)
			}
		}
	}
	for _, tok := range append([]etree.Token(nil), root.Child...) {
		if c, ok := tok.(*etree.Comment); ok && strings.TrimSpace(c.Data) != keptComment {
			root.RemoveChild(c)
		}
	}

	enc := doc.Encoding
	if enc == "" {
		enc = DefaultEncoding
	}
	now := opt.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="`+enc+`"`)
	out.CreateComment(Header(now))
	out.SetRoot(root)
	return &Template{Doc: out, Root: root, Encoding: enc}, nil
}

// Header is the text of the leading comment of every merged document.
func Header(now time.Time) string {
	return " This config file was generated by plugin's merge tool " + GeneratorVersion +
		" on " + now.Format(headerTimeLayout) + " "
}
