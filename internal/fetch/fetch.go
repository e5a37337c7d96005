package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
)

type Kind int

const (
	KindInput Kind = iota
	KindSettings
)

func (k Kind) stage() string {
	switch k {
	case KindInput:
		return model.StageLoadInput
	case KindSettings:
		return model.StageLoadConfig
	default:
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	switch k {
	case KindInput:
		return 32 * 1024 * 1024
	case KindSettings:
		return 1 * 1024 * 1024
	default:
		return 1 * 1024 * 1024
	}
}

type Options struct {
	Timeout      time.Duration // default 15s, remote sources only
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5
}

type FetchError struct {
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects  = errors.New("too many redirects")
	errRedirectBadScheme = errors.New("redirect target scheme is not http/https")
)

// IsRemote reports whether src is read over HTTP rather than from disk.
func IsRemote(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func Read(ctx context.Context, kind Kind, src string) ([]byte, error) {
	return ReadWithOptions(ctx, kind, src, Options{})
}

// ReadWithOptions returns the raw bytes of src, which is either an http(s)
// URL or a local file path. Content is not decoded: XML inputs declare their
// own encoding.
func ReadWithOptions(ctx context.Context, kind Kind, src string, opt Options) ([]byte, error) {
	stage := kind.stage()

	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = kind.defaultMaxBytes()
	}
	if maxBytes <= 0 {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "size limit must be greater than 0",
				Stage:   stage,
				URL:     src,
			},
		}
	}
	if strings.TrimSpace(src) == "" {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "empty input location",
				Stage:   stage,
			},
		}
	}

	if IsRemote(src) {
		return readRemote(ctx, stage, src, maxBytes, opt)
	}
	return readLocal(stage, src, maxBytes)
}

func readLocal(stage, path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		code := "READ_FAILED"
		msg := "cannot open file"
		if errors.Is(err, fs.ErrNotExist) {
			code = "NOT_FOUND"
			msg = "file does not exist"
		}
		return nil, &FetchError{
			AppError: model.AppError{Code: code, Message: msg, Stage: stage, URL: path},
			Cause:    err,
		}
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, &FetchError{
			AppError: model.AppError{Code: "READ_FAILED", Message: "cannot read file", Stage: stage, URL: path},
			Cause:    err,
		}
	}
	if int64(len(body)) > maxBytes {
		return nil, tooLarge(stage, path, maxBytes)
	}
	return body, nil
}

func readRemote(ctx context.Context, stage, rawURL string, maxBytes int64, opt Options) ([]byte, error) {
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRedirects := opt.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || u.Host == "" {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "invalid URL",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 1st redirect => len(via)==1.
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "invalid request URL",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if errors.Is(err, errTooManyRedirects) {
			return nil, &FetchError{
				AppError: model.AppError{
					Code:    "FETCH_FAILED",
					Message: fmt.Sprintf("too many redirects (>%d)", maxRedirects),
					Stage:   stage,
					URL:     rawURL,
				},
				Cause: err,
			}
		}
		if errors.Is(err, errRedirectBadScheme) {
			return nil, &FetchError{
				AppError: model.AppError{
					Code:    "INVALID_ARGUMENT",
					Message: "redirect target must be http/https",
					Stage:   stage,
					URL:     rawURL,
				},
				Cause: err,
			}
		}

		// Go may wrap timeouts (e.g. *url.Error).
		var ne net.Error
		if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fetchTimeout(stage, rawURL, err)
		}

		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: "cannot fetch remote input",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: fmt.Sprintf("upstream returned non-2xx status: %d", resp.StatusCode),
				Stage:   stage,
				URL:     rawURL,
			},
		}
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fetchTimeout(stage, rawURL, err)
		}
		return nil, &FetchError{
			AppError: model.AppError{
				Code:    "FETCH_FAILED",
				Message: "cannot read upstream response",
				Stage:   stage,
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	if int64(len(body)) > maxBytes {
		return nil, tooLarge(stage, rawURL, maxBytes)
	}
	return body, nil
}

func fetchTimeout(stage, src string, cause error) error {
	return &FetchError{
		AppError: model.AppError{
			Code:    "FETCH_TIMEOUT",
			Message: "timed out fetching remote input",
			Stage:   stage,
			URL:     src,
		},
		Cause: cause,
	}
}

func tooLarge(stage, src string, maxBytes int64) error {
	return &FetchError{
		AppError: model.AppError{
			Code:    "TOO_LARGE",
			Message: fmt.Sprintf("input too large (>%d bytes)", maxBytes),
			Stage:   stage,
			URL:     src,
		},
	}
}
