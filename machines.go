package volt

import (
	"context"
	"iter"
	"net/url"
	"regexp"
	"strings"
)

var rtxShorthand = regexp.MustCompile(`^RTX(\d+)`)

// ExpandGPUShorthand turns a short GPU name into the form the machine
// inventory uses, e.g. "RTX4090" becomes "RTX 4090". Names longer than ten
// characters or containing a space are returned unchanged, as are other
// families ("A100", "H200") since the API matches them as substrings.
func ExpandGPUShorthand(gpu string) string {
	if len(gpu) > 10 || strings.Contains(gpu, " ") {
		return gpu
	}
	if m := rtxShorthand.FindStringSubmatch(strings.ToUpper(gpu)); m != nil {
		return "RTX " + m[1]
	}
	return gpu
}

// ListMachines returns machines with available capacity. A non-empty
// gpuType filters by GPU model; shorthand such as "RTX4090" is expanded.
func (c *Client) ListMachines(ctx context.Context, gpuType string) ([]Machine, error) {
	return collect(c.IterMachines(ctx, gpuType))
}

// IterMachines lazily iterates over available machines.
func (c *Client) IterMachines(ctx context.Context, gpuType string) iter.Seq2[Machine, error] {
	var q url.Values
	if gpuType != "" {
		q = url.Values{"gpuType": {ExpandGPUShorthand(gpuType)}}
	}
	return paginate[Machine](c, ctx, "/volt/machines", q, "machines")
}
