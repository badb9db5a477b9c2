package server

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"time"

	"osapi/internal/blobstore"
)

// handleUpload serves a stored image by its public path.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	key := path.Join(blobstore.DefaultPrefix, r.PathValue("file"))
	if err := blobstore.ValidatePath(key); err != nil {
		s.writeErrorReq(w, r, notFound())
		return
	}

	rc, err := s.blobs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, blobstore.ErrInvalidPath) {
			s.writeErrorReq(w, r, notFound())
			return
		}
		s.writeErrorReq(w, r, internalError(msgRetrieveFailed, err))
		return
	}
	defer rc.Close()

	if mediaType := mime.TypeByExtension(path.Ext(key)); mediaType != "" {
		w.Header().Set("Content-Type", mediaType)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if file, ok := rc.(*os.File); ok {
		modTime := time.Time{}
		if info, err := file.Stat(); err == nil {
			modTime = info.ModTime()
		}
		http.ServeContent(w, r, path.Base(key), modTime, file)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Warn("stream upload", "path", key, "error", err)
	}
}
