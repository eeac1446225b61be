// Package artifact uploads the packaged kernel to the GitHub Actions
// artifact store as a single named bundle (v4 artifact API).
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const apiBase = "twirp/github.actions.results.api.v1.ArtifactService/"

// Client talks to the Actions results service of the current workflow run.
type Client struct {
	base     string // ACTIONS_RESULTS_URL, with trailing slash
	token    string // ACTIONS_RUNTIME_TOKEN
	runID    string // workflow run backend id, from the token's scope
	jobRunID string // workflow job run backend id
}

// NewClientFromEnv builds a Client from the runtime environment the Actions
// runner injects into each job.
func NewClientFromEnv() (*Client, error) {
	base := os.Getenv("ACTIONS_RESULTS_URL")
	token := os.Getenv("ACTIONS_RUNTIME_TOKEN")
	if base == "" || token == "" {
		return nil, fmt.Errorf("not running under GitHub Actions: ACTIONS_RESULTS_URL / ACTIONS_RUNTIME_TOKEN unset")
	}

	runID, jobRunID, err := backendIDs(token)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{base: base, token: token, runID: runID, jobRunID: jobRunID}, nil
}

// Upload bundles the listed files (paths relative to root) into a zip and
// uploads them as one named artifact: create, blob upload, finalize.
func (c *Client) Upload(ctx context.Context, name, root string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("artifact %s: no files to upload", name)
	}

	zipPath, size, digest, err := writeZip(root, files)
	if err != nil {
		return err
	}
	defer os.Remove(zipPath)

	var created struct {
		OK              bool   `json:"ok"`
		SignedUploadURL string `json:"signed_upload_url"`
	}
	createReq := map[string]any{
		"workflow_run_backend_id":     c.runID,
		"workflow_job_run_backend_id": c.jobRunID,
		"name":                        name,
		"version":                     4,
	}
	if err := c.doJSON(ctx, "CreateArtifact", createReq, &created); err != nil {
		return err
	}
	if !created.OK || created.SignedUploadURL == "" {
		return fmt.Errorf("artifact %s: create was not acknowledged", name)
	}

	if err := c.putBlob(ctx, created.SignedUploadURL, zipPath, size); err != nil {
		return err
	}

	var finalized struct {
		OK         bool   `json:"ok"`
		ArtifactID string `json:"artifact_id"`
	}
	finalizeReq := map[string]any{
		"workflow_run_backend_id":     c.runID,
		"workflow_job_run_backend_id": c.jobRunID,
		"name":                        name,
		"size":                        size,
		"hash":                        "sha256:" + digest,
	}
	if err := c.doJSON(ctx, "FinalizeArtifact", finalizeReq, &finalized); err != nil {
		return err
	}
	if !finalized.OK {
		return fmt.Errorf("artifact %s: finalize was not acknowledged", name)
	}
	return nil
}

// doJSON executes one twirp call against the artifact service.
func (c *Client) doJSON(ctx context.Context, method string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", method, err)
	}

	url := c.base + apiBase + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("POST %s: %d %s", method, resp.StatusCode, truncateBody(respBody, 512))
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding %s response: %w", method, err)
		}
	}
	return nil
}

// putBlob uploads the zip to the signed blob URL returned by CreateArtifact.
func (c *Client) putBlob(ctx context.Context, url, zipPath string, size int64) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("x-ms-blob-type", "BlockBlob")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("uploading bundle: %d %s", resp.StatusCode, truncateBody(body, 512))
	}
	return nil
}

// backendIDs extracts the workflow run / job run backend ids from the
// runtime token's "Actions.Results:<run>:<job>" scope claim.
func backendIDs(token string) (string, string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("runtime token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("decoding runtime token: %w", err)
	}

	var claims struct {
		Scope string `json:"scp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", "", fmt.Errorf("parsing runtime token claims: %w", err)
	}

	for _, scope := range strings.Split(claims.Scope, " ") {
		if !strings.HasPrefix(scope, "Actions.Results:") {
			continue
		}
		fields := strings.Split(scope, ":")
		if len(fields) != 3 {
			return "", "", fmt.Errorf("malformed Actions.Results scope %q", scope)
		}
		return fields[1], fields[2], nil
	}
	return "", "", fmt.Errorf("runtime token carries no Actions.Results scope")
}

func truncateBody(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
