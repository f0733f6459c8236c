package mantatest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/stream"
)

// job is a fake compute job. Its output is the list of input keys it was given.
type job struct {
	user  string
	state manta.Job
	input []string
}

// Job returns the current state of job id and its input keys.
func (s *Server) Job(id string) (manta.Job, []string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return manta.Job{}, nil, false
	}
	return j.state, append([]string(nil), j.input...), true
}

func (s *Server) jobFor(r *http.Request) (*job, bool) {
	j, ok := s.jobs[chi.URLParam(r, "id")]
	if !ok || j.user != chi.URLParam(r, "user") {
		return nil, false
	}
	return j, true
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var spec manta.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidJob", err.Error())
		return
	}
	if _, err := spec.JobSpec(); err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidJob", err.Error())
		return
	}

	user := chi.URLParam(r, "user")
	id := uuid.NewString()

	s.mu.Lock()
	s.jobs[id] = &job{
		user: user,
		state: manta.Job{
			ID:          id,
			Name:        spec.Name,
			State:       "running",
			TimeCreated: time.Now().UTC(),
			Phases:      spec.Phases,
		},
	}
	s.jobOrder = append(s.jobOrder, id)
	s.mu.Unlock()

	w.Header().Set("Location", "/"+user+"/jobs/"+id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobFor(r)
	var state manta.Job
	if ok {
		state = j.state
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", "job "+chi.URLParam(r, "id")+" was not found")
		return
	}
	if err := writeJSON(w, http.StatusOK, state); err != nil {
		s.log.Error("failed to encode job", "error", err)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	s.mu.Lock()
	var lines [][]byte
	for _, id := range s.jobOrder {
		if j := s.jobs[id]; j.user == user {
			line, _ := json.Marshal(j.state)
			lines = append(lines, line)
		}
	}
	s.mu.Unlock()

	s.writeStream(w, manta.MediaTypeJobStream, "", lines)
}

func (s *Server) handleAddJobKeys(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", "job "+chi.URLParam(r, "id")+" was not found")
		return
	}
	if j.state.InputDone {
		s.writeError(w, http.StatusConflict, "InvalidJobState", "job input is closed")
		return
	}

	for _, key := range strings.Split(string(body), "\n") {
		if key = strings.TrimSpace(key); key != "" {
			j.input = append(j.input, key)
		}
	}
	if r.URL.Query().Get("end") == "true" {
		s.endLocked(j)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobFor(r)
	if !ok {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", "job "+chi.URLParam(r, "id")+" was not found")
		return
	}
	s.endLocked(j)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) endLocked(j *job) {
	j.state.InputDone = true
	j.state.State = "done"
	j.state.TimeDone = time.Now().UTC()
}

func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobFor(r)
	var lines [][]byte
	if ok {
		for _, key := range j.input {
			lines = append(lines, []byte(key))
		}
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "ResourceNotFound", "job "+chi.URLParam(r, "id")+" was not found")
		return
	}
	s.writeStream(w, manta.MediaTypeJSONStream, "", lines)
}

// writeStream sends lines as a line delimited body ending with the stream
// trailer configured for the server. raw is sent verbatim before the lines.
func (s *Server) writeStream(w http.ResponseWriter, contentType, raw string, lines [][]byte) {
	s.mu.Lock()
	mode := s.trailer
	s.mu.Unlock()

	if mode != TrailerNone {
		w.Header().Set("Trailer", stream.TrailerStreamError)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)

	_, _ = io.WriteString(w, raw)
	for _, line := range lines {
		_, _ = w.Write(append(line, '\n'))
	}

	switch mode {
	case TrailerSuccess:
		w.Header().Set(stream.TrailerStreamError, "false")
	case TrailerFailure:
		w.Header().Set(stream.TrailerStreamError, "true")
	}
}
