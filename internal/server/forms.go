package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// formField is one submitted field. JSON bodies can send non-string values,
// which form encodings cannot express. JSON null decodes as an empty value.
type formField struct {
	Value     string
	NotString bool
}

// requestForm is a request body decoded independently of its encoding.
type requestForm struct {
	fields map[string]formField
	files  map[string]*multipart.FileHeader
}

func (f requestForm) field(name string) (formField, bool) {
	field, ok := f.fields[name]
	return field, ok
}

func (f requestForm) value(name string) string {
	return f.fields[name].Value
}

func (f requestForm) file(name string) (*multipart.FileHeader, bool) {
	header, ok := f.files[name]
	return header, ok && header != nil
}

var errBodyTooLarge = errors.New("request body too large")

// parseRequestForm reads multipart, urlencoded, or JSON bodies. Other content
// types yield an empty form so validation reports missing fields.
func parseRequestForm(w http.ResponseWriter, r *http.Request, maxBody, multipartMemory int64) (requestForm, error) {
	form := requestForm{fields: map[string]formField{}, files: map[string]*multipart.FileHeader{}}
	if r.Body == nil || r.Body == http.NoBody {
		return form, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch strings.ToLower(mediaType) {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return form, classifyBodyError(err)
		}
		for name, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				form.fields[name] = formField{Value: values[0]}
			}
		}
		for name, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				form.files[name] = headers[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return form, classifyBodyError(err)
		}
		for name, values := range r.PostForm {
			if len(values) > 0 {
				form.fields[name] = formField{Value: values[0]}
			}
		}
	case "application/json":
		raw := map[string]json.RawMessage{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return form, nil
			}
			return form, classifyBodyError(err)
		}
		for name, value := range raw {
			form.fields[name] = jsonFormField(value)
		}
	}
	return form, nil
}

func jsonFormField(raw json.RawMessage) formField {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return formField{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return formField{Value: s}
	}
	return formField{Value: trimmed, NotString: true}
}

func classifyBodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errBodyTooLarge
	}
	return makeAPIError(http.StatusBadRequest, "Malformed request body", fmt.Errorf("parse request body: %w", err))
}

func readFormFile(header *multipart.FileHeader, limit int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, limit))
}
