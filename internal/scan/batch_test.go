package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// mockScanner is a mock implementation of Scanner
type mockScanner struct {
	mu        sync.Mutex
	outcomes  map[string]Outcome
	calls     []string
	endpoints []string
	inFlight  int
	maxFlight int
	onScan    func(img Image)
}

func newMockScanner() *mockScanner {
	return &mockScanner{outcomes: make(map[string]Outcome)}
}

func (m *mockScanner) Scan(ctx context.Context, img Image, endpoint string) Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, img.Name)
	m.endpoints = append(m.endpoints, endpoint)
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	onScan := m.onScan
	m.mu.Unlock()

	if onScan != nil {
		onScan(img)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	if outcome, ok := m.outcomes[img.Name]; ok {
		return outcome
	}
	return Outcome{Payload: json.RawMessage(`{"type":"Vin","nom":"` + img.Name + `"}`)}
}

var _ = Describe("Batch", func() {
	var (
		scanner   *mockScanner
		tracker   *Tracker
		batch     *Batch
		images    []Image
		snapshots []Snapshot
		final     Snapshot
	)

	BeforeEach(func() {
		scanner = newMockScanner()
		tracker = NewTracker()
		batch = NewBatch(scanner, tracker)
		images = []Image{
			{Name: "a.jpg", Data: []byte("a")},
			{Name: "b.jpg", Data: []byte("b")},
			{Name: "c.jpg", Data: []byte("c")},
		}
		snapshots = nil
	})

	JustBeforeEach(func() {
		final = batch.ProcessAll(context.Background(), images, "http://gateway/analyze", func(s Snapshot) {
			snapshots = append(snapshots, s)
		})
	})

	When("every scan succeeds", func() {
		It("should produce one item per image in input order", func() {
			Expect(final.Items).To(HaveLen(3))
			for i, item := range final.Items {
				Expect(item.Index).To(Equal(i))
				Expect(item.FileName).To(Equal(images[i].Name))
			}
		})

		It("should finish every item successfully", func() {
			Expect(final.Done()).To(BeTrue())
			for _, item := range final.Items {
				Expect(item.Status).To(Equal(StatusSuccess))
				Expect(item.Payload).NotTo(BeNil())
				Expect(item.ErrorMessage).To(BeEmpty())
			}
		})

		It("should scan sequentially in input order", func() {
			Expect(scanner.calls).To(Equal([]string{"a.jpg", "b.jpg", "c.jpg"}))
			Expect(scanner.maxFlight).To(Equal(1))
		})

		It("should pass the endpoint to every scan", func() {
			Expect(scanner.endpoints).To(HaveEach("http://gateway/analyze"))
		})

		It("should publish the initial pending snapshot first", func() {
			Expect(snapshots[0].Counts()).To(Equal(Counts{Total: 3, Pending: 3}))
		})

		It("should publish a snapshot for every transition", func() {
			Expect(snapshots).To(HaveLen(1 + 2*len(images)))
		})

		It("should never show more than one item processing", func() {
			for _, s := range snapshots {
				Expect(s.Counts().Processing).To(BeNumerically("<=", 1))
			}
		})

		It("should move items through processing in index order", func() {
			var order []int
			for _, s := range snapshots {
				for _, item := range s.Items {
					if item.Status == StatusProcessing {
						order = append(order, item.Index)
					}
				}
			}
			Expect(order).To(Equal([]int{0, 1, 2}))
		})

		It("should leave the final snapshot in the tracker", func() {
			Expect(tracker.Snapshot()).To(Equal(final))
		})
	})

	When("one item fails", func() {
		BeforeEach(func() {
			scanner.outcomes["b.jpg"] = Outcome{Err: &Error{Kind: ErrTransport, Err: errors.New("connection refused")}}
		})

		It("should keep processing the other items", func() {
			Expect(final.Items[0].Status).To(Equal(StatusSuccess))
			Expect(final.Items[2].Status).To(Equal(StatusSuccess))
		})

		It("should mark the failed item with its message", func() {
			item := final.Items[1]
			Expect(item.Status).To(Equal(StatusError))
			Expect(item.ErrorMessage).To(Equal("connection refused"))
			Expect(item.Err).To(MatchError(ErrTransport))
			Expect(item.Payload).To(BeNil())
		})

		It("should count successes and failures", func() {
			Expect(final.Counts()).To(Equal(Counts{Total: 3, Succeeded: 2, Failed: 1}))
		})
	})

	When("observers mutate their snapshot", func() {
		BeforeEach(func() {
			images = images[:1]
		})

		It("should not affect the tracker", func() {
			last := snapshots[len(snapshots)-1]
			last.Items[0].Status = StatusPending
			last.Items[0].Payload[0] = 'X'
			current := tracker.Snapshot()
			Expect(current.Items[0].Status).To(Equal(StatusSuccess))
			Expect(string(current.Items[0].Payload)).To(HavePrefix("{"))
		})
	})

	When("the list is empty", func() {
		BeforeEach(func() {
			images = nil
		})

		It("should be done immediately", func() {
			Expect(final.Items).To(BeEmpty())
			Expect(final.Done()).To(BeTrue())
			Expect(scanner.calls).To(BeEmpty())
		})
	})

	When("a new batch is submitted while one is running", func() {
		BeforeEach(func() {
			second := NewBatch(newMockScanner(), tracker)
			scanner.onScan = func(img Image) {
				if img.Name == "b.jpg" {
					second.ProcessAll(context.Background(), []Image{{Name: "z.jpg", Data: []byte("z")}}, "e", nil)
				}
			}
		})

		It("should discard the previous items", func() {
			current := tracker.Snapshot()
			Expect(current.Items).To(HaveLen(1))
			Expect(current.Items[0].FileName).To(Equal("z.jpg"))
			Expect(current.Items[0].Status).To(Equal(StatusSuccess))
		})

		It("should ignore the stale result and stop the old batch", func() {
			Expect(scanner.calls).To(Equal([]string{"a.jpg", "b.jpg"}))
			Expect(final.BatchID).NotTo(Equal(tracker.Snapshot().BatchID))
			Expect(final.Items[1].Status).To(Equal(StatusProcessing))
		})
	})
})

var _ = Describe("Batch over HTTP", func() {
	var relay *ghttp.Server

	BeforeEach(func() {
		relay = ghttp.NewServer()
		relay.AppendHandlers(
			ghttp.RespondWith(http.StatusOK, `{"type":"Facture","vendeur":"A"}`),
			func(w http.ResponseWriter, r *http.Request) {
				// drop the connection to simulate a transport failure
				hj, ok := w.(http.Hijacker)
				Expect(ok).To(BeTrue())
				conn, _, err := hj.Hijack()
				Expect(err).NotTo(HaveOccurred())
				conn.Close()
			},
			ghttp.RespondWith(http.StatusOK, `{"type":"Vin","nom":"C"}`),
		)
	})

	AfterEach(func() {
		relay.Close()
	})

	It("should isolate a transport failure to its own item", func() {
		client := NewClient(relay.URL(), 0)
		final := NewBatch(client, NewTracker()).ProcessAll(context.Background(), []Image{
			{Name: "a.jpg", Data: []byte("a")},
			{Name: "b.jpg", Data: []byte("b")},
			{Name: "c.jpg", Data: []byte("c")},
		}, "http://gateway/analyze", nil)

		Expect(final.Done()).To(BeTrue())
		Expect(final.Items[0].Status).To(Equal(StatusSuccess))
		Expect(final.Items[1].Status).To(Equal(StatusError))
		Expect(final.Items[1].Err).To(MatchError(ErrTransport))
		Expect(final.Items[2].Status).To(Equal(StatusSuccess))
	})
})
