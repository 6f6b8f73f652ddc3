package report

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TransportREST names the REST report transport in results and metrics.
const TransportREST = "rest"

// successMarker is the fragment the controller puts in a confirmed report response.
const successMarker = "<status>200</status>"

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 64 << 10

// HTTPClient is the part of *http.Client the REST transport uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// ClientFactory returns the client for one push. The transport closes its
// connections when the push finishes.
type ClientFactory func() HTTPClient

// Credentials address and authenticate the legacy controller.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string

	// Authorized is false when the host reported the stored credentials
	// as rejected by the controller.
	Authorized bool
}

// RESTOptions configures a RESTTransport.
type RESTOptions struct {
	Credentials Credentials
	ProfileNum  int

	// Timeout bounds each request. Zero means only the caller's context applies.
	Timeout time.Duration

	// NewClient defaults to a fresh *http.Client without keep-alives.
	NewClient ClientFactory

	Logger Logger
}

// RESTTransport reports to legacy controllers with one GET per push.
type RESTTransport struct {
	creds     Credentials
	profile   int
	timeout   time.Duration
	newClient ClientFactory
	logger    Logger
}

// NewRESTTransport creates a REST transport.
func NewRESTTransport(opts RESTOptions) *RESTTransport {
	t := &RESTTransport{
		creds:     opts.Credentials,
		profile:   opts.ProfileNum,
		timeout:   opts.Timeout,
		newClient: opts.NewClient,
		logger:    opts.Logger,
	}
	if t.newClient == nil {
		t.newClient = defaultClient
	}
	if t.logger == nil {
		t.logger = noopLogger{}
	}
	return t
}

func defaultClient() HTTPClient {
	return &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

// NodePrefix returns the controller's node address prefix for a profile:
// "n" + profile zero-filled to three digits + "_".
func NodePrefix(profile int) string {
	return fmt.Sprintf("n%03d_", profile)
}

// ReportPath builds the report endpoint path. r.Text must already be encoded.
func ReportPath(profile int, r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/rest/ns/%d/nodes/%s%s/report/status/%s/%d/%d",
		profile, NodePrefix(profile), r.Address, r.Driver, r.Value, r.UOM)
	if r.IsText() {
		b.WriteString("/text/")
		b.WriteString(r.Text)
	}
	return b.String()
}

// Name implements Transport.
func (t *RESTTransport) Name() string { return TransportREST }

// Deliver implements Transport. The response body and the push's
// connections are released on every path.
func (t *RESTTransport) Deliver(ctx context.Context, r Report) Result {
	res := resultFor(r, TransportREST)

	if t.creds.Host == "" {
		t.logger.Warn("report skipped", "address", r.Address, "driver", r.Driver, "error", ErrNoHost)
		return res.withErr(StatusFailed, ErrNoHost)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	target := "http://" + net.JoinHostPort(t.creds.Host, strconv.Itoa(t.creds.Port)) + ReportPath(t.profile, r)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		t.logger.Error("building report request failed", "address", r.Address, "driver", r.Driver, "error", err)
		return res.withErr(StatusFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
	}
	req.SetBasicAuth(t.creds.Username, t.creds.Password)

	client := t.newClient()
	defer client.CloseIdleConnections()

	t.logger.Debug("pushing report", "address", r.Address, "driver", r.Driver, "value", r.Value, "path", req.URL.EscapedPath())

	resp, err := client.Do(req)
	if err != nil {
		t.logger.Error("report request failed", "address", r.Address, "driver", r.Driver, "error", err)
		return res.withErr(StatusFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		t.logger.Error("reading report response failed", "address", r.Address, "driver", r.Driver, "error", err)
		return res.withErr(StatusFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
	}

	if !strings.Contains(string(body), successMarker) {
		t.logger.Warn("report not confirmed",
			"address", r.Address,
			"driver", r.Driver,
			"http_status", resp.StatusCode,
			"response", string(body),
		)
		return res.withErr(StatusRejected, fmt.Errorf("%w: http %d", ErrBadStatus, resp.StatusCode))
	}

	t.logger.Debug("report confirmed", "address", r.Address, "driver", r.Driver)
	return res.withErr(StatusDelivered, nil)
}
