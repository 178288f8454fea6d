package hub_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/hub"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/protocol"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/testutils"
	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

func setup(src *testutils.MockSource) *hub.Hub {
	logger := zap.NewNop()
	return hub.NewHub(func() *rtd.Server {
		return rtd.NewServer(src, logger, rtd.WithInterval(10*time.Millisecond))
	}, logger)
}

func subscribe(h *hub.Hub, c hub.ClientInterface, id int, fields ...string) {
	h.HandleCommand(c, protocol.WSRequest{
		Action:  protocol.ActionSubscribe,
		Payload: protocol.RequestPayload{TopicID: id, Fields: fields},
		ID:      "sub",
	})
}

func TestHub_SubscribeReturnsValue(t *testing.T) {
	h := setup(testutils.NewMockSource())
	client := testutils.NewMockClient("c1")
	h.Register(client)
	defer h.Unregister(client)

	subscribe(h, client, 1, "bid")

	msg := client.LastMsg()
	if msg.Type != protocol.TypeValue {
		t.Fatalf("Expected value response, got %s", msg.Type)
	}
	if msg.TopicID == nil || *msg.TopicID != 1 {
		t.Errorf("Expected topic id 1, got %v", msg.TopicID)
	}
	if v, ok := msg.Data.(models.Value); !ok || v != models.Number(0) {
		t.Errorf("Expected default value 0, got %v", msg.Data)
	}
}

func TestHub_SubscribeInvalidField(t *testing.T) {
	h := setup(testutils.NewMockSource())
	client := testutils.NewMockClient("c1")
	h.Register(client)
	defer h.Unregister(client)

	subscribe(h, client, 7, "VOLUME")

	if v, ok := client.LastMsg().Data.(models.Value); !ok || v != models.InvalidTopic {
		t.Errorf("Expected InvalidTopic, got %v", client.LastMsg().Data)
	}
}

func TestHub_RefreshAfterNotify(t *testing.T) {
	src := testutils.NewMockSource(testutils.FetchResult{Quote: models.DefaultQuote()})
	h := setup(src)
	client := testutils.NewMockClient("c1")
	h.Register(client)
	defer h.Unregister(client)

	subscribe(h, client, 1, "BID")
	subscribe(h, client, 2, "TIMESTAMP")

	src.Push(testutils.FetchResult{Quote: testutils.Quote(100.5, 100.7, 100.6, "2024-01-02T15:04:05Z")})

	deadline := time.Now().Add(2 * time.Second)
	for client.NotifyCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.NotifyCount() == 0 {
		t.Fatal("Expected an update notification")
	}

	h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionRefresh, ID: "r1"})

	msg := client.LastMsg()
	if msg.Type != protocol.TypeSnapshot || msg.TopicCount == nil || *msg.TopicCount != 2 {
		t.Fatalf("Expected snapshot of 2 topics, got %+v", msg)
	}
	table, ok := msg.Data.([][]any)
	if !ok || len(table) != 2 {
		t.Fatalf("Expected 2 row table, got %#v", msg.Data)
	}
	if table[0][0] != 1 || table[1][0] != 100.5 {
		t.Errorf("Expected (1, 100.5), got (%v, %v)", table[0][0], table[1][0])
	}
	if table[0][1] != 2 || table[1][1] != "2024-01-02T15:04:05Z" {
		t.Errorf("Expected timestamp topic, got (%v, %v)", table[0][1], table[1][1])
	}
}

func TestHub_RefreshEmpty(t *testing.T) {
	h := setup(testutils.NewMockSource())
	client := testutils.NewMockClient("c1")
	h.Register(client)
	defer h.Unregister(client)

	subscribe(h, client, 1, "BID")
	h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionUnsubscribe, Payload: protocol.RequestPayload{TopicID: 1}})
	h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionRefresh})

	msg := client.LastMsg()
	if msg.TopicCount == nil || *msg.TopicCount != 0 {
		t.Errorf("Expected topic_count 0, got %v", msg.TopicCount)
	}
	if msg.Data != nil {
		t.Errorf("Expected no data, got %#v", msg.Data)
	}
}

func TestHub_Heartbeat(t *testing.T) {
	h := setup(testutils.NewMockSource(testutils.FetchResult{Err: models.ErrMalformedQuote}))
	client := testutils.NewMockClient("c1")
	h.Register(client)
	defer h.Unregister(client)

	h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionHeartbeat})

	msg := client.LastMsg()
	if msg.Alive == nil || *msg.Alive != 1 {
		t.Errorf("Expected alive=1, got %v", msg.Alive)
	}
}

func TestHub_UnknownAction(t *testing.T) {
	h := setup(testutils.NewMockSource())
	client := testutils.NewMockClient("c1")
	h.Register(client)
	defer h.Unregister(client)

	h.HandleCommand(client, protocol.WSRequest{Action: "explode", ID: "x"})

	if client.LastMsg().Type != protocol.TypeError {
		t.Errorf("Expected error response")
	}
}

func TestHub_CommandWithoutSession(t *testing.T) {
	h := setup(testutils.NewMockSource())
	client := testutils.NewMockClient("ghost")

	subscribe(h, client, 1, "BID")

	if client.LastMsg().Type != protocol.TypeError {
		t.Errorf("Expected error for unregistered client")
	}
}

func TestHub_UnregisterStopsSession(t *testing.T) {
	h := setup(testutils.NewMockSource())
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")
	h.Register(c1)
	h.Register(c1) // second register is ignored
	h.Register(c2)

	if h.Sessions() != 2 {
		t.Fatalf("Expected 2 sessions, got %d", h.Sessions())
	}

	h.Unregister(c1)
	if h.Sessions() != 1 {
		t.Errorf("Expected 1 session, got %d", h.Sessions())
	}
	if !c1.Closed {
		t.Error("Unregister should close the client")
	}

	h.Shutdown()
	if h.Sessions() != 0 || !c2.Closed {
		t.Error("Shutdown should close every session")
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h := setup(testutils.NewMockSource(testutils.FetchResult{Quote: testutils.Quote(1, 2, 3, "t")}))
	client := testutils.NewMockClient("c1")
	h.Register(client)

	done := make(chan struct{}, 3)
	go func() {
		subscribe(h, client, 1, "BID")
		done <- struct{}{}
	}()
	go func() {
		h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionRefresh})
		done <- struct{}{}
	}()
	go func() {
		h.Unregister(client)
		done <- struct{}{}
	}()
	for i := 0; i < 3; i++ {
		<-done
	}
}
