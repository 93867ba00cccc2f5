// Package volt provides a Go SDK for the VoltageGPU API.
//
// VoltageGPU rents GPU compute as pods created from templates. This SDK
// wraps the REST API with typed resources, typed errors, retries and a
// lifecycle tracker that waits for pods to converge.
//
// # Installation
//
// To install the SDK, use go get:
//
//	go get github.com/voltagegpu/volt-go
//
// # Quick Start
//
// Create a client and list pods:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/voltagegpu/volt-go"
//	)
//
//	func main() {
//	    // Reads VOLT_API_KEY or ~/.volt/config.yaml
//	    client, err := volt.NewClient()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//
//	    pods, err := client.ListPods(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, pod := range pods {
//	        fmt.Printf("%s %s %s\n", pod.ID, pod.Name, pod.Status)
//	    }
//	}
//
// # Client Configuration
//
// The client can be configured using functional options:
//
//	client, err := volt.NewClient(
//	    volt.WithAPIKey(os.Getenv("MY_KEY")),
//	    volt.WithTimeout(10*time.Second),
//	    volt.WithRetries(4),
//	    volt.WithLogger(logger),
//	)
//
// Credentials resolve per field in this order: options, environment
// (VOLT_API_KEY, VOLT_BASE_URL), then the config file. A missing API key is
// a CONFIGURATION error from [NewClient].
//
// # Waiting for Pods
//
// Lifecycle calls return as soon as the provider accepts them. The *AndWait
// variants poll until the pod converges:
//
//	pod, err := client.CreatePodAndWait(ctx, &volt.CreatePodRequest{
//	    TemplateID: "pytorch-cuda12",
//	    Name:       "train-1",
//	}, volt.WaitOptions{Timeout: 15 * time.Minute})
//
// A PROVISIONING_TIMEOUT error leaves the pod in place.
//
// # Error Handling
//
// Every error is an [*Error] carrying a code, the HTTP status when there was
// one, and a message:
//
//	err := client.DeletePod(ctx, id)
//	switch {
//	case errors.Is(err, volt.ErrNotFound):
//	    // already gone
//	case errors.Is(err, volt.ErrUnauthorized):
//	    // bad or expired key
//	}
//
// Network failures, timeouts, 429 and 5xx responses are retried with
// exponential backoff before they are returned.
//
// # Thread Safety
//
// The [Client] is safe for concurrent use by multiple goroutines. It keeps
// no cache of pods, balances or inventory; every call goes to the API.
package volt
