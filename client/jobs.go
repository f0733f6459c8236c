package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/stream"
)

// JobListing streams the jobs of the account.
type JobListing = stream.Decoder[manta.Job]

// KeyStream streams the output keys of a job.
type KeyStream = stream.Decoder[string]

// AddJobKeysOptions control key submission.
type AddJobKeysOptions struct {
	RequestOptions

	// End closes the job's input once the keys are accepted.
	End bool
}

// CreateJob submits a new job and returns its identifier. With a user set
// on the client the identifier is the bare job id, otherwise the full
// location the service returned. A job without a name gets a short random one.
func (c *Client) CreateJob(ctx context.Context, def manta.JobDefinition, opts RequestOptions) (string, error) {
	if def == nil {
		return "", fmt.Errorf("create job: %w", ErrNilJob)
	}
	spec, err := def.JobSpec()
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	if spec.Name == "" {
		spec.Name = uuid.NewString()[:7]
	}

	payload, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("create job: encode: %w", err)
	}

	env := c.newEnvelope(manta.JobPath(c.user, ""), opts, defaults{
		accept:        "application/json",
		contentType:   manta.MediaTypeJob,
		contentLength: int64(len(payload)),
	})
	log := c.requestLogger("createJob", env)
	log.Debug("createJob: entered", "name", spec.Name, "phases", len(spec.Phases))

	resp, err := c.do(ctx, "createJob", http.MethodPost, env, bytes.NewReader(payload))
	if err != nil {
		log.Debug("createJob: error", "err", err)
		return "", err
	}
	discard(resp)

	location := resp.Header.Get(HeaderLocation)
	if location == "" {
		log.Debug("createJob: error", "err", ErrEmptyLocation)
		return "", fmt.Errorf("create job: %w", ErrEmptyLocation)
	}
	if c.user != "" {
		location = manta.JobID(location)
	}

	log.Debug("createJob: done", "job", location)
	return location, nil
}

// Job fetches the current state of job id.
func (c *Client) Job(ctx context.Context, id string, opts RequestOptions) (*manta.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("get job: %w", ErrEmptyJobID)
	}

	env := c.newEnvelope(manta.JobPath(c.user, id), opts, defaults{accept: "application/json"})
	log := c.requestLogger("getJob", env)
	log.Debug("getJob: entered")

	resp, err := c.do(ctx, "getJob", http.MethodGet, env, nil)
	if err != nil {
		log.Debug("getJob: error", "err", err)
		return nil, err
	}
	defer discard(resp)

	var job manta.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		log.Debug("getJob: error", "err", err)
		return nil, fmt.Errorf("get job: decode: %w", err)
	}

	log.Debug("getJob: done", "state", job.State)
	return &job, nil
}

// ListJobs streams every job of the account.
func (c *Client) ListJobs(ctx context.Context, opts RequestOptions) (*JobListing, error) {
	env := c.newEnvelope(manta.JobPath(c.user, ""), opts, defaults{accept: manta.MediaTypeJSONStream})
	log := c.requestLogger("listJobs", env)
	log.Debug("listJobs: entered")

	resp, err := c.do(ctx, "listJobs", http.MethodGet, env, nil)
	if err != nil {
		log.Debug("listJobs: error", "err", err)
		return nil, err
	}

	parse := func(line []byte) (manta.Job, error) {
		job, err := stream.JSONLines[manta.Job](line)
		if err != nil {
			log.Warn("listJobs: invalid JSON data", "line", string(line), "err", err)
		}
		return job, err
	}
	return openStream(c, resp, env.path, log, "listJobs", parse), nil
}

// AddJobKeys submits input keys to job id. Keys already naming a storage
// hierarchy are sent as given; others are resolved into the client's namespace.
func (c *Client) AddJobKeys(ctx context.Context, id string, keys []string, opts AddJobKeysOptions) error {
	if id == "" {
		return fmt.Errorf("add job keys: %w", ErrEmptyJobID)
	}
	if len(keys) == 0 {
		return fmt.Errorf("add job keys: %w", ErrNoKeys)
	}

	resolved := make([]string, len(keys))
	for i, k := range keys {
		if manta.IsStorageKey(k) {
			resolved[i] = k
			continue
		}
		resolved[i] = strings.TrimRight(c.resolve(k).String(), "\r\n")
	}
	payload := strings.Join(resolved, "\r\n")

	if opts.End {
		q := url.Values{}
		for k, v := range opts.Query {
			q[k] = v
		}
		q.Set("end", "true")
		opts.Query = q
	}

	env := c.newEnvelope(manta.JobPath(c.user, id, "in"), opts.RequestOptions, defaults{
		accept:        "application/json",
		contentType:   "text/plain",
		contentLength: int64(len(payload)),
	})
	log := c.requestLogger("addJobKey", env)
	log.Debug("addJobKey: entered", "keys", len(resolved), "end", opts.End)

	resp, err := c.do(ctx, "addJobKey", http.MethodPost, env, strings.NewReader(payload))
	if err != nil {
		log.Debug("addJobKey: error", "err", err)
		return err
	}
	discard(resp)

	log.Debug("addJobKey: done")
	return nil
}

// EndJob closes the input of job id.
func (c *Client) EndJob(ctx context.Context, id string, opts RequestOptions) error {
	if id == "" {
		return fmt.Errorf("end job: %w", ErrEmptyJobID)
	}

	env := c.newEnvelope(manta.JobPath(c.user, id, "in", "end"), opts, defaults{
		accept:      "application/json",
		contentType: "application/json",
	})
	log := c.requestLogger("endJob", env)
	log.Debug("endJob: entered")

	resp, err := c.do(ctx, "endJob", http.MethodPost, env, nil)
	if err != nil {
		log.Debug("endJob: error", "err", err)
		return err
	}
	discard(resp)

	log.Debug("endJob: done")
	return nil
}

// JobOutput streams the output keys job id has produced so far, one per line.
func (c *Client) JobOutput(ctx context.Context, id string, opts RequestOptions) (*KeyStream, error) {
	if id == "" {
		return nil, fmt.Errorf("job output: %w", ErrEmptyJobID)
	}

	env := c.newEnvelope(manta.JobPath(c.user, id, "out"), opts, defaults{accept: manta.MediaTypeJSONStream})
	log := c.requestLogger("jobOutput", env)
	log.Debug("jobOutput: entered")

	resp, err := c.do(ctx, "jobOutput", http.MethodGet, env, nil)
	if err != nil {
		log.Debug("jobOutput: error", "err", err)
		return nil, err
	}

	return openStream(c, resp, env.path, log, "jobOutput", stream.RawLines), nil
}
