package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"osapi/internal/config"
	"osapi/internal/models"
)

// FieldErrors maps a request field to its validation messages.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ImageUpload is an uploaded file held in memory.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// SentenceForm is the raw, unvalidated input of a create or update request.
type SentenceForm struct {
	Sentence string
	// Description nil means the field was not submitted at all.
	Description *string
	Image       *ImageUpload
	// TypeErrors holds type mismatches found while decoding the request body.
	TypeErrors FieldErrors
}

// UploadPolicy bounds accepted image uploads.
type UploadPolicy struct {
	MaxBytes           int64
	MultipartMaxMemory int64
	AllowedMediaTypes  []string
}

// DefaultUploadPolicy returns the policy used when nothing is configured.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxBytes:           config.DefaultUploadMaxBytes,
		MultipartMaxMemory: config.DefaultUploadMultipartMaxMemory,
		AllowedMediaTypes:  append([]string(nil), models.DefaultImageMediaTypes...),
	}
}

func (p UploadPolicy) normalized() UploadPolicy {
	defaults := DefaultUploadPolicy()
	if p.MaxBytes <= 0 {
		p.MaxBytes = defaults.MaxBytes
	}
	if p.MultipartMaxMemory <= 0 {
		p.MultipartMaxMemory = defaults.MultipartMaxMemory
	}
	allowed := make([]string, 0, len(p.AllowedMediaTypes))
	seen := map[string]struct{}{}
	for _, raw := range p.AllowedMediaTypes {
		mediaType, err := models.NormalizeMediaType(raw)
		if err != nil || mediaType == "" {
			continue
		}
		if _, ok := seen[mediaType]; ok {
			continue
		}
		seen[mediaType] = struct{}{}
		allowed = append(allowed, mediaType)
	}
	if len(allowed) == 0 {
		allowed = defaults.AllowedMediaTypes
	}
	p.AllowedMediaTypes = allowed
	return p
}

func (p UploadPolicy) allows(mediaType string) bool {
	for _, allowed := range p.AllowedMediaTypes {
		if allowed == mediaType {
			return true
		}
	}
	return false
}

// maxRequestBody leaves room for the other form fields around the image.
func (p UploadPolicy) maxRequestBody() int64 {
	return p.MaxBytes + defaultJSONMaxBody
}

func (p UploadPolicy) tooLargeMessage() string {
	return fmt.Sprintf("The image field must not be greater than %s.", humanize.IBytes(uint64(p.MaxBytes)))
}

func (p UploadPolicy) typeMessage() string {
	names := make([]string, 0, len(p.AllowedMediaTypes))
	for _, mediaType := range p.AllowedMediaTypes {
		_, subtype, _ := strings.Cut(mediaType, "/")
		names = append(names, subtype)
	}
	sort.Strings(names)
	return fmt.Sprintf("The image field must be a file of type: %s.", strings.Join(names, ", "))
}

type validatedImage struct {
	data      []byte
	mediaType string
	ext       string
}

// sentencePayload is a validated SentenceForm ready for the stores.
type sentencePayload struct {
	sentence       string
	description    *string
	descriptionSet bool
	image          *validatedImage
}

func (p UploadPolicy) validateSentenceForm(form SentenceForm, imageRequired bool) (sentencePayload, FieldErrors) {
	errs := FieldErrors{}
	for field, messages := range form.TypeErrors {
		for _, message := range messages {
			errs.add(field, message)
		}
	}

	var payload sentencePayload

	payload.sentence = strings.TrimSpace(form.Sentence)
	if payload.sentence == "" && len(errs["sentence"]) == 0 {
		errs.add("sentence", "The sentence field is required.")
	}

	if form.Description != nil {
		payload.descriptionSet = true
		if description := strings.TrimSpace(*form.Description); description != "" {
			payload.description = &description
		}
	}

	switch {
	case form.Image == nil:
		if imageRequired && len(errs["image"]) == 0 {
			errs.add("image", "The image field is required.")
		}
	case int64(len(form.Image.Data)) > p.MaxBytes:
		errs.add("image", p.tooLargeMessage())
	default:
		detected, _ := models.NormalizeMediaType(http.DetectContentType(form.Image.Data))
		if !strings.HasPrefix(detected, "image/") {
			errs.add("image", "The image field must be an image.")
		}
		if !p.allows(detected) {
			errs.add("image", p.typeMessage())
			break
		}
		payload.image = &validatedImage{
			data:      form.Image.Data,
			mediaType: detected,
			ext:       models.ImageExtension(detected, filepath.Ext(form.Image.Filename)),
		}
	}

	if len(errs) > 0 {
		return sentencePayload{}, errs
	}
	return payload, nil
}
