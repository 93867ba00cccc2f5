package volt

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Default polling parameters used by the *AndWait methods.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultPollJitter   = 0.1
)

// WaitOptions controls how the lifecycle tracker polls a pod.
//
// The timeout bounds the whole polling session and is independent of the
// per-request timeout set with [WithTimeout].
type WaitOptions struct {
	// PollInterval is the delay between two status reads. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// Timeout bounds the polling session. Zero means DefaultWaitTimeout.
	Timeout time.Duration

	// Jitter adds up to this fraction of PollInterval to every delay so
	// that batches of waiting callers spread out. Zero means
	// DefaultPollJitter; a negative value disables jitter.
	Jitter float64
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultWaitTimeout
	}
	switch {
	case o.Jitter == 0:
		o.Jitter = DefaultPollJitter
	case o.Jitter < 0:
		o.Jitter = 0
	}
	return o
}

func (o WaitOptions) delay() time.Duration {
	if o.Jitter == 0 {
		return o.PollInterval
	}
	return o.PollInterval + time.Duration(float64(o.PollInterval)*o.Jitter*rand.Float64())
}

// PodEvent records a status change observed by the tracker.
type PodEvent struct {
	PodID      string    `json:"podId"`
	Name       string    `json:"name,omitempty"`
	From       PodStatus `json:"from,omitempty"`
	To         PodStatus `json:"to"`
	ObservedAt time.Time `json:"observedAt"`
}

// EventPublisher receives pod status changes observed while waiting. See
// the events package for a NATS implementation.
type EventPublisher interface {
	PublishPodEvent(ctx context.Context, ev PodEvent) error
}

// CreatePodAndWait creates a pod and polls it until it leaves the creating
// state.
//
// When the pod reaches running it is returned with a nil error. When the
// provider reports the error state, the pod is returned together with a
// POD_FAILED error. When opts.Timeout elapses first, the last observed pod
// is returned with a PROVISIONING_TIMEOUT error. The pod is never deleted
// by the tracker; the caller decides what to do with it.
//
//	pod, err := client.CreatePodAndWait(ctx, req, volt.WaitOptions{Timeout: 15 * time.Minute})
//	if errors.Is(err, volt.ErrProvisioningTimeout) {
//	    log.Printf("pod %s still provisioning", pod.ID)
//	}
func (c *Client) CreatePodAndWait(ctx context.Context, req *CreatePodRequest, opts WaitOptions) (*Pod, error) {
	pod, err := c.CreatePod(ctx, req)
	if err != nil {
		return nil, err
	}
	c.observe(ctx, "", pod)
	return c.wait(ctx, pod, PodRunning, opts)
}

// StartPodAndWait starts a pod and polls it until it is running.
func (c *Client) StartPodAndWait(ctx context.Context, id string, opts WaitOptions) (*Pod, error) {
	pod, err := c.StartPod(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, pod, PodRunning, opts)
}

// StopPodAndWait stops a pod and polls it until it is stopped.
func (c *Client) StopPodAndWait(ctx context.Context, id string, opts WaitOptions) (*Pod, error) {
	pod, err := c.StopPod(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, pod, PodStopped, opts)
}

// DeletePodAndWait deletes a pod and polls it until the provider reports it
// deleted or no longer knows it.
func (c *Client) DeletePodAndWait(ctx context.Context, id string, opts WaitOptions) error {
	if err := c.DeletePod(ctx, id); err != nil {
		return err
	}
	_, err := c.wait(ctx, &Pod{ID: id, Status: PodDeleting}, PodDeleted, opts)
	return err
}

// WaitForPod polls a pod until it reaches target. It issues no lifecycle
// action itself.
//
// Cancelling ctx stops polling promptly and returns a CANCELED (or TIMEOUT
// for a ctx deadline) error; the remote operation is left running.
func (c *Client) WaitForPod(ctx context.Context, id string, target PodStatus, opts WaitOptions) (*Pod, error) {
	if err := requireID("podId", id); err != nil {
		return nil, err
	}
	return c.wait(ctx, &Pod{ID: id}, target, opts)
}

// wait polls until the pod reaches target or fails. last is the most recent
// known state and is returned alongside tracker errors.
func (c *Client) wait(ctx context.Context, last *Pod, target PodStatus, opts WaitOptions) (*Pod, error) {
	opts = opts.withDefaults()

	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	first := last.Status == ""
	for {
		if !first {
			if done, pod, err := c.settled(last, target); done {
				return pod, err
			}

			timer := time.NewTimer(opts.delay())
			select {
			case <-pollCtx.Done():
				timer.Stop()
				return last, c.waitError(ctx, last, target, opts)
			case <-timer.C:
			}
		}
		first = false

		pod, err := c.GetPod(pollCtx, last.ID)
		switch {
		case err == nil:
		case target == PodDeleted && IsNotFound(err):
			pod = &Pod{ID: last.ID, Name: last.Name, Status: PodDeleted}
		case pollCtx.Err() != nil:
			return last, c.waitError(ctx, last, target, opts)
		default:
			return last, err
		}

		c.observe(ctx, last.Status, pod)
		last = pod
	}
}

// settled reports whether polling is over for the observed pod.
func (c *Client) settled(pod *Pod, target PodStatus) (bool, *Pod, error) {
	switch {
	case pod.Status == target:
		return true, pod, nil
	case pod.Status == PodError:
		return true, pod, newError(CodePodFailed,
			fmt.Sprintf("pod %s entered the error state while waiting for %s", pod.ID, target), 0, nil)
	case pod.Status.IsTerminal():
		return true, pod, newError(CodePodFailed,
			fmt.Sprintf("pod %s is %s and cannot reach %s", pod.ID, pod.Status, target), 0, nil)
	}
	return false, nil, nil
}

func (c *Client) waitError(ctx context.Context, last *Pod, target PodStatus, opts WaitOptions) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}
	return newError(CodeProvisioningTimeout,
		fmt.Sprintf("pod %s did not reach %s within %s (last status %q)", last.ID, target, opts.Timeout, last.Status),
		0, context.DeadlineExceeded)
}

// observe logs and publishes a status change.
func (c *Client) observe(ctx context.Context, from PodStatus, pod *Pod) {
	if from == pod.Status {
		return
	}
	fields := []zap.Field{
		zap.String("pod_id", pod.ID),
		zap.String("from", string(from)),
		zap.String("to", string(pod.Status)),
	}
	if from != "" && !from.CanTransition(pod.Status) {
		c.logger.Warn("unexpected pod transition", fields...)
	} else {
		c.logger.Info("pod transition", fields...)
	}

	if c.publisher == nil {
		return
	}
	ev := PodEvent{
		PodID:      pod.ID,
		Name:       pod.Name,
		From:       from,
		To:         pod.Status,
		ObservedAt: time.Now().UTC(),
	}
	if err := c.publisher.PublishPodEvent(ctx, ev); err != nil {
		c.logger.Warn("failed to publish pod event", append(fields, zap.Error(err))...)
	}
}
