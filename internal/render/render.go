package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/John-Robertt/plugincfg-merge/internal/merge"
	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
	"github.com/John-Robertt/plugincfg-merge/internal/template"
)

const (
	CommentClusters    = " Server Clusters "
	CommentVhostGroups = " Virtual Host Groups "
	CommentURIGroups   = " URI Groups "
	CommentRoutes      = " Routes "

	indentSpaces = 4
)

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Render appends the merged sections to a copy of the template: clusters,
// virtual host groups, uri groups and routes, shared before unshared, each
// section behind its comment.
func Render(tpl *template.Template, res *merge.Result) (*etree.Document, error) {
	if tpl == nil || res == nil {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "render input must not be nil",
				Stage:   model.StageRender,
			},
		}
	}

	doc := tpl.Doc.Copy()
	root := doc.Root()

	root.CreateComment(CommentClusters)
	for _, c := range res.Shared.Clusters {
		root.AddChild(clusterElement(c))
	}
	for _, c := range res.Unshared.Clusters {
		root.AddChild(clusterElement(c))
	}

	root.CreateComment(CommentVhostGroups)
	for _, g := range append(append([]model.VirtualHostGroup(nil), res.Shared.VhostGroups...), res.Unshared.VhostGroups...) {
		el := plugincfg.FromNode(g.Node)
		for _, h := range g.Hosts {
			el.AddChild(plugincfg.FromNode(h.Node))
		}
		root.AddChild(el)
	}

	root.CreateComment(CommentURIGroups)
	for _, g := range append(append([]model.URIGroup(nil), res.Shared.URIGroups...), res.Unshared.URIGroups...) {
		el := plugincfg.FromNode(g.Node)
		for _, u := range g.URIs {
			el.AddChild(plugincfg.FromNode(u.Node))
		}
		root.AddChild(el)
	}

	root.CreateComment(CommentRoutes)
	for _, r := range append(append([]model.Route(nil), res.Shared.Routes...), res.Unshared.Routes...) {
		root.AddChild(plugincfg.FromNode(r.Node))
	}
	return doc, nil
}

// Output builds the template from the first input, renders res into it and
// encodes the document in the template's encoding.
func Output(docs []*plugincfg.Document, res *merge.Result, now time.Time) ([]byte, error) {
	if len(docs) == 0 {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "no input documents",
				Stage:   model.StageRender,
			},
		}
	}
	tpl, err := template.Build(docs[0], template.Options{Now: now})
	if err != nil {
		return nil, err
	}
	doc, err := Render(tpl, res)
	if err != nil {
		return nil, err
	}
	return Encode(doc, tpl.Encoding)
}

// clusterElement always emits PrimaryServers; BackupServers only when it
// has members.
func clusterElement(c model.ServerCluster) *etree.Element {
	el := plugincfg.FromNode(c.Node)
	for _, s := range c.Servers {
		el.AddChild(plugincfg.FromNode(s.Node))
	}
	hintBlock(el.CreateElement(model.TagPrimaryServers), c.PrimaryServers)
	if len(c.BackupServers) > 0 {
		hintBlock(el.CreateElement(model.TagBackupServers), c.BackupServers)
	}
	return el
}

func hintBlock(block *etree.Element, names []string) {
	for _, n := range names {
		block.CreateElement(model.TagServer).CreateAttr(model.AttrName, n)
	}
}

// Encode pretty-prints doc with a 4-space indent in the named encoding.
// Characters the encoding cannot represent become numeric references.
func Encode(doc *etree.Document, enc string) ([]byte, error) {
	doc.Indent(indentSpaces)

	var buf bytes.Buffer
	if enc == "" || isUTF8(enc) {
		if _, err := doc.WriteTo(&buf); err != nil {
			return nil, encodeError(enc, err)
		}
		return buf.Bytes(), nil
	}

	e, _ := charset.Lookup(enc)
	if e == nil {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_ENCODING",
				Message: "output encoding is not supported",
				Stage:   model.StageRender,
				Snippet: enc,
			},
		}
	}
	w := encoding.HTMLEscapeUnsupported(e.NewEncoder()).Writer(&buf)
	if _, err := doc.WriteTo(w); err != nil {
		return nil, encodeError(enc, err)
	}
	if c, ok := w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return nil, encodeError(enc, err)
		}
	}
	return buf.Bytes(), nil
}

func isUTF8(enc string) bool {
	enc = strings.ToLower(strings.TrimSpace(enc))
	return enc == "utf-8" || enc == "utf8"
}

func encodeError(enc string, err error) error {
	return &RenderError{
		AppError: model.AppError{
			Code:    "ENCODE_ERROR",
			Message: "failed to serialize merged document",
			Stage:   model.StageRender,
			Snippet: enc,
		},
		Cause: err,
	}
}
