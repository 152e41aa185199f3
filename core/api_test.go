package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testAPIServer(bus *Bus) *APIServer {
	return NewAPIServer("127.0.0.1:0", bus, func() NodeInfo {
		return NodeInfo{ID: "node-1", Address: "0xabc", NodeType: "validator", MempoolSize: 2}
	})
}

func TestAPIHealthAndInfo(t *testing.T) {
	srv := httptest.NewServer(testAPIServer(NewBus(8)).router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	defer resp.Body.Close()
	var info NodeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.ID != "node-1" || info.MempoolSize != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestAPIStopPublishesControlEvent(t *testing.T) {
	bus := NewBus(8)
	control := bus.Subscribe(TopicJSONRPCControl)

	srv := httptest.NewServer(testAPIServer(bus).router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/control/stop", "", nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("stop status %d", resp.StatusCode)
	}

	select {
	case ev := <-control:
		if ev.Kind != EventStop {
			t.Fatalf("expected Stop, got %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no control event observed")
	}
}
