package coordinator

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/torua/internal/traceid"
)

// routerHTTPClient is shared across all forwarded requests so connections
// to shard nodes are pooled.
var routerHTTPClient = &http.Client{Timeout: 10 * time.Second}

// HTTPError carries a shard node's (or the router's own) HTTP status and
// message back to the handler that should report it to the caller.
// Handlers translate it with http.Error(w, e.Message, e.Status); the
// coordinator never invents its own error codes when a shard node already
// gave a good one.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Router resolves a routing key to a shard node and forwards requests to
// it. It holds no state of its own beyond a reference to the topology;
// node selection is a pure function of the topology at the moment of the
// call, so concurrent routing decisions never block each other.
type Router struct {
	topology *Topology
}

// NewRouter creates a Router over topology.
func NewRouter(topology *Topology) *Router {
	return &Router{topology: topology}
}

// TargetNode picks the shard node URL that should serve key. Writes always
// go to the group's leader; reads go to a node chosen uniformly at random
// from the leader and its followers, so read load is spread across the
// whole group rather than concentrated on the leader.
func (rt *Router) TargetNode(key string, write bool) (string, error) {
	groupID, ok := rt.topology.GroupForKey(key)
	if !ok {
		return "", &HTTPError{Status: http.StatusServiceUnavailable, Message: "no available shard groups"}
	}

	group, ok := rt.topology.Group(groupID)
	if !ok {
		return "", &HTTPError{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf("topology info missing for group %s", groupID)}
	}

	if write {
		if group.Leader == "" {
			return "", &HTTPError{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf("no leader available for group %s", groupID)}
		}
		return group.Leader, nil
	}

	candidates := append([]string(nil), group.Followers...)
	if group.Leader != "" {
		candidates = append(candidates, group.Leader)
	}
	if len(candidates) == 0 {
		return "", &HTTPError{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf("no active nodes for group %s", groupID)}
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// Forward issues method against shardURL+path, copying headers and body
// through unmodified (aside from stripping Host, which http.NewRequest
// sets from the target URL itself). The trace id carried by req's context
// is set on the X-Trace-ID header of the forwarded request. It returns the raw response for the
// caller to relay or translate into an HTTPError.
func (rt *Router) Forward(req *http.Request, shardURL, path string) (*http.Response, error) {
	target := strings.TrimRight(shardURL, "/") + "/" + strings.TrimLeft(path, "/")
	if rq := req.URL.RawQuery; rq != "" {
		target += "?" + rq
	}

	var body io.Reader
	if req.Body != nil {
		body = req.Body
	}

	fwd, err := http.NewRequestWithContext(req.Context(), req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("coordinator: building forwarded request to %s: %w", target, err)
	}
	for key, values := range req.Header {
		if strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			fwd.Header.Add(key, v)
		}
	}
	if id := traceid.FromContext(req.Context()); id != "N/A" {
		fwd.Header.Set(traceid.Header, id)
	}

	resp, err := routerHTTPClient.Do(fwd)
	if err != nil {
		return nil, &HTTPError{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf("shard %q is unavailable: %v", shardURL, err)}
	}
	return resp, nil
}
