package server

import (
	"errors"
	"net/http"
)

func (s *Server) handleListSentences(w http.ResponseWriter, r *http.Request) {
	page, err := s.sentences.List(r.Context(), queryPage(r), requestURLPath(r))
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, msgRetrieved, page)
}

func (s *Server) handleGetSentence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeErrorReq(w, r, notFound())
		return
	}
	record, err := s.sentences.Show(r.Context(), id)
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, msgRetrieved, record)
}

func (s *Server) handleCreateSentence(w http.ResponseWriter, r *http.Request) {
	form, err := s.sentenceForm(w, r)
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	record, err := s.sentences.Create(r.Context(), form)
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, msgCreated, record)
}

func (s *Server) handleUpdateSentence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeErrorReq(w, r, notFound())
		return
	}
	form, err := s.sentenceForm(w, r)
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	record, err := s.sentences.Update(r.Context(), id, form)
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, msgUpdated, record)
}

func (s *Server) handleDeleteSentence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeErrorReq(w, r, notFound())
		return
	}
	if err := s.sentences.Delete(r.Context(), id); err != nil {
		s.writeErrorReq(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, msgDeleted, nil)
}

// sentenceForm decodes a create or update body into a SentenceForm. JSON
// null for description clears it, the same as an empty string.
func (s *Server) sentenceForm(w http.ResponseWriter, r *http.Request) (SentenceForm, error) {
	policy := s.sentences.policy
	form, err := parseRequestForm(w, r, policy.maxRequestBody(), policy.MultipartMaxMemory)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return SentenceForm{}, validationFailed(FieldErrors{"image": {policy.tooLargeMessage()}})
		}
		return SentenceForm{}, err
	}

	out := SentenceForm{TypeErrors: FieldErrors{}}
	if field, ok := form.field("sentence"); ok {
		if field.NotString {
			out.TypeErrors.add("sentence", "The sentence field must be a string.")
		} else {
			out.Sentence = field.Value
		}
	}
	if field, ok := form.field("description"); ok {
		if field.NotString {
			out.TypeErrors.add("description", "The description field must be a string.")
		} else {
			value := field.Value
			out.Description = &value
		}
	}

	if header, ok := form.file("image"); ok {
		data, err := readFormFile(header, policy.MaxBytes+1)
		if err != nil {
			return SentenceForm{}, bodyError(err)
		}
		out.Image = &ImageUpload{Filename: header.Filename, Data: data}
	} else if field, ok := form.field("image"); ok && (field.Value != "" || field.NotString) {
		out.TypeErrors.add("image", "The image field must be a file.")
	}
	return out, nil
}

func bodyError(err error) error {
	if errors.Is(err, errBodyTooLarge) {
		return makeAPIError(http.StatusRequestEntityTooLarge, "Request body too large", err)
	}
	return makeAPIError(http.StatusBadRequest, "Malformed request body", err)
}
