package mantatest

import (
	"crypto/md5" //#nosec G501 -- content-md5 is the integrity digest of the wire protocol
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sagarc03/manta"
)

const defaultListLimit = 1024

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recordMiddleware)
	r.Use(s.authMiddleware)

	r.Route("/{user}/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Post("/", s.handleCreateJob)
		r.Get("/{id}", s.handleGetJob)
		r.Post("/{id}/in", s.handleAddJobKeys)
		r.Post("/{id}/in/end", s.handleEndJob)
		r.Get("/{id}/out", s.handleJobOutput)
	})

	r.Get("/*", s.handleGet)
	r.Head("/*", s.handleHead)
	r.Put("/*", s.handlePut)
	r.Delete("/*", s.handleDelete)

	return r
}

func cleanRequestPath(r *http.Request) string {
	return path.Clean("/" + r.URL.Path)
}

func newObject(data []byte, contentType string, durability int) *node {
	sum := md5.Sum(data) //#nosec G401
	return &node{
		data:        data,
		contentType: contentType,
		md5:         base64.StdEncoding.EncodeToString(sum[:]),
		etag:        uuid.NewString(),
		durability:  durability,
		mtime:       time.Now().UTC(),
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p := cleanRequestPath(r)

	s.mu.Lock()
	n, ok := s.lookupLocked(p)
	s.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", p+" was not found")
		return
	}

	if n.dir {
		s.serveListing(w, r, p)
		return
	}

	s.mu.Lock()
	declared := n.md5
	if override, ok := s.md5[p]; ok {
		declared = override
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", n.contentType)
	w.Header().Set("Content-Md5", declared)
	w.Header().Set("Etag", n.etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(n.data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(n.data)
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	p := cleanRequestPath(r)

	s.mu.Lock()
	n, ok := s.lookupLocked(p)
	var children int
	if ok && n.dir {
		children = len(s.childrenLocked(p))
	}
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if n.dir {
		w.Header().Set("Content-Type", manta.MediaTypeDirectoryStream)
		w.Header().Set("Result-Set-Size", strconv.Itoa(children))
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", n.contentType)
	w.Header().Set("Content-Md5", n.md5)
	w.Header().Set("Etag", n.etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(n.data)))
	w.WriteHeader(http.StatusOK)
}

// listingEntry is one line of a directory listing.
type listingEntry struct {
	Name       string          `json:"name"`
	Type       manta.EntryKind `json:"type"`
	MTime      time.Time       `json:"mtime"`
	Size       int64           `json:"size,omitempty"`
	ETag       string          `json:"etag,omitempty"`
	Durability int             `json:"durability,omitempty"`
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, dir string) {
	limit := defaultListLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	s.mu.Lock()
	raw, hasRaw := s.raw[dir]
	var lines [][]byte
	if !hasRaw {
		names := s.childrenLocked(dir)
		if offset < len(names) {
			names = names[max(offset, 0):]
		} else {
			names = nil
		}
		if len(names) > limit {
			names = names[:limit]
		}
		for _, name := range names {
			n := s.tree[dir+"/"+name]
			e := listingEntry{Name: name, Type: manta.KindObject, MTime: n.mtime}
			if n.dir {
				e.Type = manta.KindDirectory
			} else {
				e.Size = int64(len(n.data))
				e.ETag = n.etag
				e.Durability = n.durability
			}
			line, _ := json.Marshal(e)
			lines = append(lines, line)
		}
	}
	s.mu.Unlock()

	s.writeStream(w, manta.MediaTypeDirectoryStream, raw, lines)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	p := cleanRequestPath(r)
	if manta.ParsePath(p).Root() == "" {
		s.writeError(w, http.StatusBadRequest, "InvalidResource", p+" is not a storage path")
		return
	}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case params["type"] == string(manta.KindDirectory):
		s.putDirectory(w, p)
	case params["type"] == "link":
		s.putLink(w, r, p)
	default:
		s.putObject(w, r, p, mediaType)
	}
}

func (s *Server) putDirectory(w http.ResponseWriter, p string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if manta.ParsePath(p).IsRoot() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if parent, ok := s.lookupLocked(parentOf(p)); !ok || !parent.dir {
		s.writeError(w, http.StatusNotFound, "DirectoryDoesNotExist", parentOf(p)+" does not exist")
		return
	}
	if n, ok := s.tree[p]; ok && !n.dir {
		s.writeError(w, http.StatusBadRequest, "ParentNotDirectory", p+" is an object")
		return
	}
	if _, ok := s.tree[p]; !ok {
		s.tree[p] = &node{dir: true, mtime: time.Now().UTC()}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putLink(w http.ResponseWriter, r *http.Request, p string) {
	src := path.Clean(r.Header.Get("Location"))

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.tree[src]
	if !ok || n.dir {
		s.writeError(w, http.StatusNotFound, "SourceObjectNotFound", src+" was not found")
		return
	}
	if parent, ok := s.lookupLocked(parentOf(p)); !ok || !parent.dir {
		s.writeError(w, http.StatusNotFound, "DirectoryDoesNotExist", parentOf(p)+" does not exist")
		return
	}

	linked := *n
	linked.mtime = time.Now().UTC()
	s.tree[p] = &linked
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, p, contentType string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	durability, _ := strconv.Atoi(r.Header.Get("X-Durability-Level"))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	obj := newObject(data, contentType, durability)

	if want := r.Header.Get("Content-Md5"); want != "" && want != obj.md5 {
		s.writeError(w, http.StatusBadRequest, "ContentMD5Mismatch", "content-md5 expected to be "+want+", but was "+obj.md5)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if parent, ok := s.lookupLocked(parentOf(p)); !ok || !parent.dir {
		s.writeError(w, http.StatusNotFound, "DirectoryDoesNotExist", parentOf(p)+" does not exist")
		return
	}
	if n, ok := s.tree[p]; ok && n.dir {
		s.writeError(w, http.StatusBadRequest, "OperationNotAllowedOnDirectory", p+" is a directory")
		return
	}

	s.tree[p] = obj
	w.Header().Set("Etag", obj.etag)
	w.Header().Set("Computed-Md5", obj.md5)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	p := cleanRequestPath(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if manta.ParsePath(p).IsRoot() {
		s.writeError(w, http.StatusBadRequest, "OperationNotAllowedOnRootDirectory", p+" can not be deleted")
		return
	}
	n, ok := s.tree[p]
	if !ok {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", p+" was not found")
		return
	}
	if n.dir && len(s.childrenLocked(p)) > 0 {
		s.writeError(w, http.StatusBadRequest, "DirectoryNotEmpty", p+" is not empty")
		return
	}

	delete(s.tree, p)
	w.WriteHeader(http.StatusNoContent)
}
