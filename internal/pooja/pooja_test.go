package pooja

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/observability"
	"github.com/dhruvmehra/jyotiline/internal/playback"
)

var metricsSeq atomic.Int64

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("pooja_test_%d", metricsSeq.Add(1)))
}

type stubResource struct {
	mu     sync.Mutex
	loads  []string
	events chan playback.Event
}

func newStubResource() *stubResource {
	return &stubResource{events: make(chan playback.Event, 8)}
}

func (r *stubResource) Load(src string) {
	r.mu.Lock()
	r.loads = append(r.loads, src)
	r.mu.Unlock()
}

func (r *stubResource) Play() <-chan error {
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func (r *stubResource) Pause()                        {}
func (r *stubResource) Seek(float64)                  {}
func (r *stubResource) Events() <-chan playback.Event { return r.events }
func (r *stubResource) Close() error                  { return nil }

func (r *stubResource) lastLoad() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.loads) == 0 {
		return ""
	}
	return r.loads[len(r.loads)-1]
}

func newTestService() (*Service, *stubResource, *playback.Controller) {
	m := newTestMetrics()
	res := newStubResource()
	player := playback.NewController(res, m)
	return NewService(catalog.New(), player, m), res, player
}

func TestStartPlaysAarti(t *testing.T) {
	svc, res, player := newTestService()
	defer player.Shutdown()

	st, err := svc.Start("Ganesha")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !st.Active || st.Deity == nil || st.Deity.Name != "Ganesha" || st.Offerings != 0 {
		t.Fatalf("state = %+v", st)
	}

	cat := catalog.New()
	aarti, err := cat.Track("aarti-ganesha")
	if err != nil {
		t.Fatal(err)
	}
	if got := res.lastLoad(); got != aarti.AudioSrc {
		t.Fatalf("loaded %q, want the Ganesha aarti %q", got, aarti.AudioSrc)
	}
	if ps := player.State(); ps.Track == nil || ps.Track.ID != "aarti-ganesha" || !ps.Playing {
		t.Fatalf("player state = %+v", ps)
	}
}

func TestStartUnknownDeity(t *testing.T) {
	svc, _, player := newTestService()
	defer player.Shutdown()

	if _, err := svc.Start("Zeus"); !errors.Is(err, ErrUnknownDeity) {
		t.Fatalf("err = %v, want ErrUnknownDeity", err)
	}
	if svc.State().Active {
		t.Fatalf("failed start left a ritual active")
	}
}

func TestOfferRequiresRitualAndThrottlesBell(t *testing.T) {
	svc, _, player := newTestService()
	defer player.Shutdown()

	if _, err := svc.Offer(); !errors.Is(err, ErrNoRitual) {
		t.Fatalf("err = %v, want ErrNoRitual", err)
	}

	if _, err := svc.Start("Shiva"); err != nil {
		t.Fatal(err)
	}

	clock := time.Now()
	svc.now = func() time.Time { return clock }

	// Three taps inside the throttle window ring once.
	for i := 0; i < 3; i++ {
		if _, err := svc.Offer(); err != nil {
			t.Fatal(err)
		}
	}
	if st := svc.State(); st.Offerings != 1 {
		t.Fatalf("offerings = %d, want 1", st.Offerings)
	}

	clock = clock.Add(bellThrottle)
	st, err := svc.Offer()
	if err != nil {
		t.Fatal(err)
	}
	if st.Offerings != 2 {
		t.Fatalf("offerings = %d, want 2", st.Offerings)
	}
}

func TestStartOverSwitchesDeityAndResetsCount(t *testing.T) {
	svc, res, player := newTestService()
	defer player.Shutdown()

	svc.Start("Krishna")
	svc.Offer()
	st, err := svc.Start("Hanuman")
	if err != nil {
		t.Fatal(err)
	}
	if st.Deity.Name != "Hanuman" || st.Offerings != 0 {
		t.Fatalf("state after switch = %+v", st)
	}

	cat := catalog.New()
	aarti, _ := cat.Track("aarti-hanuman")
	if got := res.lastLoad(); got != aarti.AudioSrc {
		t.Fatalf("loaded %q, want the Hanuman aarti", got)
	}
}

func TestStopReleasesPlayer(t *testing.T) {
	svc, res, player := newTestService()
	defer player.Shutdown()

	svc.Start("Devi")
	st := svc.Stop()
	if st.Active || st.Deity != nil || st.Offerings != 0 {
		t.Fatalf("state after stop = %+v", st)
	}
	if got := res.lastLoad(); got != "" {
		t.Fatalf("source after stop = %q, want cleared", got)
	}
	if ps := player.State(); ps.Track != nil || ps.Playing {
		t.Fatalf("player state after stop = %+v", ps)
	}

	if _, err := svc.Offer(); !errors.Is(err, ErrNoRitual) {
		t.Fatalf("Offer() after stop error = %v, want ErrNoRitual", err)
	}

	// Stopping again is a quiet no-op.
	if st := svc.Stop(); st.Active {
		t.Fatalf("second stop reactivated ritual")
	}
}
