package volt

import (
	"context"
	"iter"
	"net/http"
	"net/url"

	oaierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"
)

// CreatePodRequest describes a pod to create.
//
//	pod, err := client.CreatePod(ctx, &volt.CreatePodRequest{
//	    TemplateID: "pytorch-cuda12",
//	    Name:       "t1",
//	    GPUCount:   swag.Int(2),
//	})
type CreatePodRequest struct {
	// TemplateID is the template to create the pod from. Required.
	TemplateID string

	// Name is the pod display name. Required.
	Name string

	// GPUCount is the number of GPUs. Nil means 1; an explicit value must be
	// at least 1.
	GPUCount *int

	// SSHKeyIDs are the registered keys installed in the pod.
	SSHKeyIDs []string

	// EnvVars are environment variables set in the pod. Keys must be
	// non-empty.
	EnvVars map[string]string

	// DockerCredentialsID references stored registry credentials.
	DockerCredentialsID *string
}

type createPodPayload struct {
	TemplateID          string            `json:"templateId"`
	Name                string            `json:"name"`
	GPUCount            int               `json:"gpuCount"`
	SSHKeyIDs           []string          `json:"sshKeyIds,omitempty"`
	DockerCredentialsID string            `json:"dockerCredentialsId,omitempty"`
	EnvVars             map[string]string `json:"envVars,omitempty"`
}

// Validate checks the request locally.
func (r *CreatePodRequest) Validate() error {
	if r == nil {
		return validationError("", "request is required")
	}
	results := []*oaierrors.Validation{
		validate.RequiredString("templateId", "body", r.TemplateID),
		validate.RequiredString("name", "body", r.Name),
	}
	if r.GPUCount != nil {
		results = append(results, validate.MinimumInt("gpuCount", "body", int64(*r.GPUCount), 1, false))
	}
	if v, ok := r.EnvVars[""]; ok {
		results = append(results, oaierrors.Required("envVars", "body", v))
	}
	return checkRequest(results...)
}

func (r *CreatePodRequest) payload() createPodPayload {
	gpus := r.GPUCount
	if gpus == nil {
		gpus = swag.Int(1)
	}
	return createPodPayload{
		TemplateID:          r.TemplateID,
		Name:                r.Name,
		GPUCount:            swag.IntValue(gpus),
		SSHKeyIDs:           r.SSHKeyIDs,
		DockerCredentialsID: swag.StringValue(r.DockerCredentialsID),
		EnvVars:             r.EnvVars,
	}
}

func podPath(id string) string {
	return "/volt/pods/" + url.PathEscape(id)
}

func requireID(field, id string) error {
	return checkRequest(validate.RequiredString(field, "path", id))
}

// ListPods returns every pod owned by the account, in server order.
func (c *Client) ListPods(ctx context.Context) ([]Pod, error) {
	return collect(c.IterPods(ctx))
}

// IterPods lazily iterates over the account's pods, fetching pages on
// demand.
//
//	for pod, err := range client.IterPods(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(pod.Name)
//	}
func (c *Client) IterPods(ctx context.Context) iter.Seq2[Pod, error] {
	return paginate[Pod](c, ctx, "/volt/pods", nil, "pods")
}

// GetPod fetches one pod.
func (c *Client) GetPod(ctx context.Context, id string) (*Pod, error) {
	if err := requireID("podId", id); err != nil {
		return nil, err
	}
	var pod Pod
	if err := c.do(ctx, http.MethodGet, podPath(id), nil, nil, &pod); err != nil {
		return nil, err
	}
	return &pod, nil
}

// CreatePod creates a pod from a template. The returned pod is usually still
// creating; use [Client.CreatePodAndWait] to block until it runs.
//
// The request is validated before any network call.
func (c *Client) CreatePod(ctx context.Context, req *CreatePodRequest) (*Pod, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var pod Pod
	if err := c.do(ctx, http.MethodPost, "/volt/pods", nil, req.payload(), &pod); err != nil {
		return nil, err
	}
	return &pod, nil
}

// StartPod starts a stopped pod.
func (c *Client) StartPod(ctx context.Context, id string) (*Pod, error) {
	return c.podAction(ctx, id, "start")
}

// StopPod stops a running pod.
func (c *Client) StopPod(ctx context.Context, id string) (*Pod, error) {
	return c.podAction(ctx, id, "stop")
}

func (c *Client) podAction(ctx context.Context, id, action string) (*Pod, error) {
	if err := requireID("podId", id); err != nil {
		return nil, err
	}
	var pod Pod
	if err := c.do(ctx, http.MethodPost, podPath(id)+"/"+action, nil, nil, &pod); err != nil {
		return nil, err
	}
	return &pod, nil
}

// DeletePod deletes a pod. Deleting a pod that no longer exists returns a
// NOT_FOUND error; see [IsNotFound].
func (c *Client) DeletePod(ctx context.Context, id string) error {
	if err := requireID("podId", id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, podPath(id), nil, nil, nil)
}
