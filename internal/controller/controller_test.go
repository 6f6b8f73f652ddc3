package controller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// memRepo is an in-memory node.Repository.
type memRepo struct {
	mu      sync.Mutex
	records map[string]node.Record
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]node.Record)}
}

func (r *memRepo) List(context.Context) ([]node.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]node.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (r *memRepo) Create(_ context.Context, rec node.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.Address]; ok {
		return node.ErrNodeExists
	}
	r.records[rec.Address] = rec
	return nil
}

func (r *memRepo) UpdateDetails(_ context.Context, address, name, ip string) error {
	return r.mutate(address, func(rec *node.Record) { rec.Name, rec.IP = name, ip })
}

func (r *memRepo) SetRegistered(_ context.Context, address string, registered bool) error {
	return r.mutate(address, func(rec *node.Record) { rec.Registered = registered })
}

func (r *memRepo) SaveDrivers(_ context.Context, address string, drivers []node.Driver) error {
	return r.mutate(address, func(rec *node.Record) { rec.Drivers = drivers })
}

func (r *memRepo) Delete(_ context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[address]; !ok {
		return node.ErrNodeNotFound
	}
	delete(r.records, address)
	return nil
}

func (r *memRepo) mutate(address string, fn func(*node.Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[address]
	if !ok {
		return node.ErrNodeNotFound
	}
	fn(&rec)
	r.records[address] = rec
	return nil
}

// fakeHost records host calls and optionally confirms creations.
type fakeHost struct {
	mu      sync.Mutex
	added   []node.Snapshot
	removed []string
	notices map[string]string
	clears  int

	// confirm, when set, is called in a new goroutine for every AddNode.
	confirm func(address string)
}

func newFakeHost() *fakeHost {
	return &fakeHost{notices: make(map[string]string)}
}

func (h *fakeHost) AddNode(_ context.Context, n node.Snapshot) error {
	h.mu.Lock()
	h.added = append(h.added, n)
	confirm := h.confirm
	h.mu.Unlock()
	if confirm != nil {
		go confirm(n.Address)
	}
	return nil
}

func (h *fakeHost) RemoveNode(_ context.Context, address string) error {
	h.mu.Lock()
	h.removed = append(h.removed, address)
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) SetNotice(key, text string) error {
	h.mu.Lock()
	h.notices[key] = text
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) ClearNotices() error {
	h.mu.Lock()
	h.notices = make(map[string]string)
	h.clears++
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) addedAddresses() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.added))
	for i, s := range h.added {
		out[i] = s.Address
	}
	return out
}

// recordingTransport captures delivered reports.
type recordingTransport struct {
	mu      sync.Mutex
	reports []report.Report
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Deliver(_ context.Context, r report.Report) report.Result {
	t.mu.Lock()
	t.reports = append(t.reports, r)
	t.mu.Unlock()
	return report.Result{Address: r.Address, Driver: r.Driver, Value: r.Value, Text: r.Text, Status: report.StatusDelivered}
}

func (t *recordingTransport) forAddress(address string) []report.Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []report.Report
	for _, r := range t.reports {
		if r.Address == address {
			out = append(out, r)
		}
	}
	return out
}

type harness struct {
	ctrl      *Controller
	registry  *node.Registry
	host      *fakeHost
	transport *recordingTransport
}

func newHarness(t *testing.T, createTimeout time.Duration) *harness {
	t.Helper()
	registry := node.NewRegistry(newMemRepo())
	transport := &recordingTransport{}
	pusher, err := report.NewPusher(report.PusherOptions{Transport: transport, Store: registry})
	if err != nil {
		t.Fatal(err)
	}
	host := newFakeHost()

	ctrl, err := New(Options{
		Registry:      registry,
		Pusher:        pusher,
		Host:          host,
		Name:          "Govee Bridge",
		CreateTimeout: createTimeout,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctrl.now = func() time.Time { return time.Date(2024, 5, 10, 13, 2, 3, 0, time.UTC) }

	if err := ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	return &harness{ctrl: ctrl, registry: registry, host: host, transport: transport}
}

// ready registers and starts the controller and auto-confirms creations.
func (h *harness) ready(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := h.ctrl.Started(ctx, DefaultAddress); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Registered(ctx, DefaultAddress); err != nil {
		t.Fatal(err)
	}
	h.host.mu.Lock()
	h.host.confirm = func(address string) { _ = h.ctrl.Registered(ctx, address) }
	h.host.mu.Unlock()
}

func TestNew_Validation(t *testing.T) {
	registry := node.NewRegistry(newMemRepo())
	pusher, _ := report.NewPusher(report.PusherOptions{Transport: &recordingTransport{}})

	tests := []struct {
		name string
		opts Options
	}{
		{"no registry", Options{Pusher: pusher, Host: newFakeHost(), CreateTimeout: time.Second}},
		{"no pusher", Options{Registry: registry, Host: newFakeHost(), CreateTimeout: time.Second}},
		{"no host", Options{Registry: registry, Pusher: pusher, CreateTimeout: time.Second}},
		{"no timeout", Options{Registry: registry, Pusher: pusher, Host: newFakeHost()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestBootstrap_RequestsControllerNode(t *testing.T) {
	h := newHarness(t, time.Second)

	added := h.host.addedAddresses()
	if len(added) != 1 || added[0] != DefaultAddress {
		t.Errorf("AddNode calls = %v, want [controller]", added)
	}
	n, err := h.ctrl.Node()
	if err != nil {
		t.Fatal(err)
	}
	if n.Kind() != node.KindController || n.Parent() != DefaultAddress {
		t.Errorf("controller node = %+v", n.Snapshot())
	}

	// Second bootstrap reuses the stored node.
	if err := h.ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() again error = %v", err)
	}
	if h.registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.registry.Count())
	}
}

func TestRegistered_ControllerAnnouncesRunning(t *testing.T) {
	h := newHarness(t, time.Second)
	ctrl, _ := h.ctrl.Node()
	_ = ctrl.SetDriver(node.DriverGV0, 5)

	h.ready(t)

	if v, _ := ctrl.GetDriver(node.DriverGV0); v != node.Uninitialized {
		t.Errorf("GV0 = %d, want reset to %d", v, node.Uninitialized)
	}
	reports := h.transport.forAddress(DefaultAddress)
	if len(reports) != 1 {
		t.Fatalf("controller reports = %d, want 1", len(reports))
	}
	if reports[0].Text != "NodeServer%20Running" || reports[0].Value != 1 {
		t.Errorf("report = %+v", reports[0])
	}
}

func TestRegistered_BeforeStartIsSilent(t *testing.T) {
	h := newHarness(t, time.Second)

	if err := h.ctrl.Registered(context.Background(), DefaultAddress); err != nil {
		t.Fatal(err)
	}
	if n := len(h.transport.forAddress(DefaultAddress)); n != 0 {
		t.Errorf("reports before start = %d, want 0", n)
	}
	if err := h.ctrl.Registered(context.Background(), "gvld_9"); !errors.Is(err, node.ErrNodeNotFound) {
		t.Errorf("Registered(unknown) error = %v, want ErrNodeNotFound", err)
	}
}

func TestParameters_Invalid(t *testing.T) {
	h := newHarness(t, time.Second)
	h.ready(t)

	err := h.ctrl.Parameters(context.Background(), map[string]string{"IP_Addresses": "1.2"})

	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("Parameters() error = %v, want ErrInvalidParameters", err)
	}
	if len(h.host.notices) != 2 {
		t.Errorf("notices = %v, want IP_Addresses and Device_Names", h.host.notices)
	}
	reports := h.transport.forAddress(DefaultAddress)
	last := reports[len(reports)-1]
	if last.Text != "INVALID%20IP_Addresses%20Parameter%3B%20MISSING%20Device_Names%20Parameter" {
		t.Errorf("GPV text = %q", last.Text)
	}
	if h.registry.Count() != 1 {
		t.Error("no children may be created from invalid parameters")
	}
}

func TestParameters_CreatesChildren(t *testing.T) {
	h := newHarness(t, time.Second)
	h.ready(t)

	err := h.ctrl.Parameters(context.Background(), map[string]string{
		"IP_Addresses": "10.0.0.5;10.0.0.6",
		"Device_Names": "Lamp;Desk",
	})
	if err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}

	children := h.registry.Children(DefaultAddress)
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	for i, want := range []struct{ address, name, ip string }{
		{"gvld_0", "Lamp", "10.0.0.5"},
		{"gvld_1", "Desk", "10.0.0.6"},
	} {
		c := children[i]
		if c.Address() != want.address || c.Name() != want.name || c.IP() != want.ip {
			t.Errorf("child %d = %s/%s/%s, want %+v", i, c.Address(), c.Name(), c.IP(), want)
		}
		if !node.CanPush(c) {
			t.Errorf("child %s not ready after confirmation", c.Address())
		}
	}

	ctrl, _ := h.ctrl.Node()
	if v, _ := ctrl.GetDriver(node.DriverGV0); v != 2 {
		t.Errorf("GV0 = %d, want 2", v)
	}
	if h.host.clears != 1 {
		t.Errorf("ClearNotices calls = %d, want 1", h.host.clears)
	}
	if h.ctrl.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", h.ctrl.Pending())
	}
}

func TestParameters_Reconciles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Second)
	h.ready(t)

	if err := h.ctrl.Parameters(ctx, map[string]string{
		"IP_Addresses": "10.0.0.5;10.0.0.6;10.0.0.7",
		"Device_Names": "Lamp;Desk;Hall",
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.ctrl.Parameters(ctx, map[string]string{
		"IP_Addresses": "10.0.0.5;10.0.0.16",
		"Device_Names": "Lamp;Study",
	}); err != nil {
		t.Fatal(err)
	}

	children := h.registry.Children(DefaultAddress)
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	if children[1].Name() != "Study" || children[1].IP() != "10.0.0.16" {
		t.Errorf("gvld_1 = %s/%s, want Study/10.0.0.16", children[1].Name(), children[1].IP())
	}
	if len(h.host.removed) != 1 || h.host.removed[0] != "gvld_2" {
		t.Errorf("removed = %v, want [gvld_2]", h.host.removed)
	}

	// controller, 3 creations, 1 rename; unchanged gvld_0 is not re-sent.
	if got := len(h.host.addedAddresses()); got != 5 {
		t.Errorf("AddNode calls = %d, want 5", got)
	}
	ctrl, _ := h.ctrl.Node()
	if v, _ := ctrl.GetDriver(node.DriverGV0); v != 2 {
		t.Errorf("GV0 = %d, want 2", v)
	}
}

func TestParameters_CreateTimeoutContinues(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	ctx := context.Background()
	if err := h.ctrl.Started(ctx, DefaultAddress); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Registered(ctx, DefaultAddress); err != nil {
		t.Fatal(err)
	}
	// Only gvld_1 is ever confirmed.
	h.host.confirm = func(address string) {
		if address == "gvld_1" {
			_ = h.ctrl.Registered(ctx, address)
		}
	}

	err := h.ctrl.Parameters(ctx, map[string]string{
		"IP_Addresses": "10.0.0.5;10.0.0.6",
		"Device_Names": "Lamp;Desk",
	})
	if err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}

	g0, err := h.registry.Get("gvld_0")
	if err != nil {
		t.Fatal(err)
	}
	if g0.Registered() {
		t.Error("gvld_0 should stay unregistered after timeout")
	}
	g1, err := h.registry.Get("gvld_1")
	if err != nil {
		t.Fatal(err)
	}
	if !g1.Registered() {
		t.Error("gvld_1 should be registered")
	}
	if h.ctrl.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", h.ctrl.Pending())
	}
}

func TestParameters_RetriesUnconfirmedChild(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	ctx := context.Background()
	if err := h.ctrl.Started(ctx, DefaultAddress); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Registered(ctx, DefaultAddress); err != nil {
		t.Fatal(err)
	}
	params := map[string]string{"IP_Addresses": "10.0.0.5", "Device_Names": "Lamp"}

	// First pass: the host never confirms gvld_0.
	if err := h.ctrl.Parameters(ctx, params); err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}
	before := len(h.host.addedAddresses())

	h.host.mu.Lock()
	h.host.confirm = func(address string) { _ = h.ctrl.Registered(ctx, address) }
	h.host.mu.Unlock()

	if err := h.ctrl.Parameters(ctx, params); err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}

	added := h.host.addedAddresses()
	if len(added) != before+1 || added[len(added)-1] != "gvld_0" {
		t.Fatalf("AddNode calls = %v, want gvld_0 requested again", added)
	}
	g0, err := h.registry.Get("gvld_0")
	if err != nil {
		t.Fatal(err)
	}
	if !g0.Registered() || !g0.Started() {
		t.Errorf("gvld_0 registered=%v started=%v, want both", g0.Registered(), g0.Started())
	}

	// Confirmed children are not requested on an unchanged reapply.
	if err := h.ctrl.Parameters(ctx, params); err != nil {
		t.Fatal(err)
	}
	if got := len(h.host.addedAddresses()); got != len(added) {
		t.Errorf("AddNode calls = %d after unchanged reapply, want %d", got, len(added))
	}
}

func TestAwait(t *testing.T) {
	h := newHarness(t, 10*time.Millisecond)

	done := h.ctrl.expect("gvld_0")
	if err := h.ctrl.await(context.Background(), "gvld_0", done); !errors.Is(err, ErrCreateTimeout) {
		t.Errorf("await() error = %v, want ErrCreateTimeout", err)
	}

	done = h.ctrl.expect("gvld_1")
	h.ctrl.complete("gvld_1")
	if err := h.ctrl.await(context.Background(), "gvld_1", done); err != nil {
		t.Errorf("await() after complete error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done = h.ctrl.expect("gvld_2")
	if err := h.ctrl.await(ctx, "gvld_2", done); !errors.Is(err, context.Canceled) {
		t.Errorf("await() cancelled error = %v, want context.Canceled", err)
	}
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Second)
	h.ready(t)
	if err := h.ctrl.Parameters(ctx, map[string]string{
		"IP_Addresses": "10.0.0.5;10.0.0.6",
		"Device_Names": "Lamp;Desk",
	}); err != nil {
		t.Fatal(err)
	}
	g1, _ := h.registry.Get("gvld_1")
	g1.MarkStopped()

	if err := h.ctrl.Poll(ctx, PollShort); err != nil {
		t.Fatalf("Poll(short) error = %v", err)
	}
	reports := h.transport.forAddress(DefaultAddress)
	last := reports[len(reports)-1]
	want := "Last%20Short%20Poll%20Date%20%2F%20Time%3A%2005%2F10%2F2024%2001%3A02%3A03%20PM"
	if last.Driver != node.DriverText || last.Text != want {
		t.Errorf("short poll report = %s %q, want GPV %q", last.Driver, last.Text, want)
	}

	if err := h.ctrl.Poll(ctx, PollLong); err != nil {
		t.Fatalf("Poll(long) error = %v", err)
	}
	if n := len(h.transport.forAddress("gvld_0")); n != 1 {
		t.Errorf("gvld_0 reports = %d, want 1", n)
	}
	if n := len(h.transport.forAddress("gvld_1")); n != 0 {
		t.Errorf("stopped gvld_1 reports = %d, want 0", n)
	}

	if err := h.ctrl.Poll(ctx, "medium"); !errors.Is(err, ErrUnknownPoll) {
		t.Errorf("Poll(medium) error = %v, want ErrUnknownPoll", err)
	}
}

func TestParsePollKind(t *testing.T) {
	tests := []struct {
		in      string
		want    PollKind
		wantErr bool
	}{
		{"short", PollShort, false},
		{"shortPoll", PollShort, false},
		{"longPoll", PollLong, false},
		{"LONG", PollLong, false},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePollKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePollKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Second)
	h.ready(t)
	if err := h.ctrl.Parameters(ctx, map[string]string{
		"IP_Addresses": "10.0.0.5;10.0.0.6",
		"Device_Names": "Lamp;Desk",
	}); err != nil {
		t.Fatal(err)
	}

	h.ctrl.Stop(ctx)

	for _, child := range h.registry.Children(DefaultAddress) {
		if v, _ := child.GetDriver(node.DriverStatus); v != node.StatusUnknown {
			t.Errorf("%s ST = %d, want %d", child.Address(), v, node.StatusUnknown)
		}
		reports := h.transport.forAddress(child.Address())
		if len(reports) == 0 || reports[len(reports)-1].Driver != node.DriverStatus {
			t.Errorf("%s: ST not reported", child.Address())
		}
	}
	for _, n := range h.registry.List() {
		if node.CanPush(n) {
			t.Errorf("%s still pushable after stop", n.Address())
		}
	}
}

func TestCommand(t *testing.T) {
	h := newHarness(t, time.Second)
	ctx := context.Background()

	if err := h.ctrl.Command(ctx, DefaultAddress, "DISCOVER"); err != nil {
		t.Errorf("Command(DISCOVER) error = %v", err)
	}
	if err := h.ctrl.Command(ctx, DefaultAddress, "REBOOT"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Command(REBOOT) error = %v, want ErrUnknownCommand", err)
	}
	if err := h.ctrl.Command(ctx, "gvld_7", "DISCOVER"); !errors.Is(err, node.ErrNodeNotFound) {
		t.Errorf("Command(unknown node) error = %v, want ErrNodeNotFound", err)
	}
}
