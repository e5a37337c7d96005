package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/John-Robertt/plugincfg-merge/internal/merge"
	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
	"github.com/John-Robertt/plugincfg-merge/internal/render"
	"github.com/John-Robertt/plugincfg-merge/internal/template"
)

// Form field carrying one input document; parts are merged in body order.
const filePart = "file"

// handleMerge answers POST /api/merge with the merged document.
func (s *server) handleMerge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.MergeTimeout)
	defer cancel()

	fileName, err := outputFileName(r.URL.Query().Get("fileName"))
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	opt, err := s.mergeOptions(r.URL.Query())
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	docs, err := s.readInputs(ctx, r)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	res, err := merge.Merge(ctx, docs, opt)
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	out, err := render.Output(docs, res, s.opt.Now())
	if err != nil {
		s.writeErrorFromErr(w, err)
		return
	}
	if err := ctx.Err(); err != nil {
		s.writeErrorFromErr(w, err)
		return
	}

	s.metrics.observeMerge(res.Stats)
	w.Header().Set("Content-Disposition", contentDispositionAttachment(fileName))
	enc := docs[0].Encoding
	if enc == "" {
		enc = template.DefaultEncoding
	}
	WriteXML(w, http.StatusOK, enc, out)
}

// mergeOptions layers the boolean query flags over the service settings.
// A flag given without a value counts as true.
func (s *server) mergeOptions(q url.Values) (merge.Options, error) {
	set := s.opt.Settings
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"sortVhostGrp", &set.SortVhostGroup},
		{"setMatchUriAppVhost", &set.MatchURIAppVhost},
		{"precedence", &set.Precedence},
	} {
		if !q.Has(f.name) {
			continue
		}
		v := q.Get(f.name)
		if v == "" {
			*f.dst = true
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return merge.Options{}, requestError("INVALID_ARGUMENT",
				fmt.Sprintf("query parameter %s must be a boolean", f.name), "e.g. "+f.name+"=true")
		}
		*f.dst = b
	}
	return set.MergeOptions(s.opt.Logger), nil
}

// readInputs parses every file part in body order.
func (s *server) readInputs(ctx context.Context, r *http.Request) ([]*plugincfg.Document, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, requestError("INVALID_ARGUMENT", "request body must be multipart/form-data", "one \"file\" part per input document")
	}

	var docs []*plugincfg.Document
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, uploadError(err)
		}
		if part.FormName() != filePart {
			_ = part.Close()
			return nil, requestError("INVALID_ARGUMENT", fmt.Sprintf("unexpected form field %q", part.FormName()), "only \"file\" parts are accepted")
		}
		doc, err := s.readPart(part, len(docs))
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, requestError("INVALID_ARGUMENT", "no input documents", "send one or more \"file\" parts")
	}
	return docs, nil
}

func (s *server) readPart(part *multipart.Part, seq int) (*plugincfg.Document, error) {
	name := part.FileName()
	if name == "" {
		name = fmt.Sprintf("%s[%d]", filePart, seq)
	}

	limit := s.opt.Settings.MaxInputBytes
	var src io.Reader = part
	if limit > 0 {
		src = io.LimitReader(part, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, uploadError(err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, apiError(http.StatusRequestEntityTooLarge, model.AppError{
			Code:    "TOO_LARGE",
			Message: "input document exceeds max_input_bytes",
			Stage:   model.StageLoadInput,
			URL:     name,
			Hint:    "max=" + strconv.FormatInt(limit, 10) + " bytes",
		}, nil)
	}

	s.opt.Logger.Debug("Processing file", "file", name, "seq", seq)
	return plugincfg.Parse(name, data)
}

func uploadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apiError(http.StatusRequestEntityTooLarge, model.AppError{
			Code:    "TOO_LARGE",
			Message: "request body is too large",
			Stage:   model.StageLoadInput,
			Hint:    "max=" + strconv.FormatInt(mbe.Limit, 10) + " bytes",
		}, err)
	}
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    "INVALID_ARGUMENT",
		Message: "malformed multipart body",
		Stage:   stageRequest,
	}, err)
}
