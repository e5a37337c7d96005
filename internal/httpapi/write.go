package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
)

func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// WriteXML sends an encoded document; enc is the charset named in its declaration.
func WriteXML(w http.ResponseWriter, status int, enc string, body []byte) {
	w.Header().Set("Content-Type", "application/xml; charset="+enc)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func WriteError(w http.ResponseWriter, status int, e model.AppError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: e})
}
