package rrclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starksyncd/starksyncd/internal/felt"
	"github.com/starksyncd/starksyncd/internal/types"
)

// echoHeaderServer replies to a single headers request with two header
// items followed by Fin, then closes.
func echoHeaderServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req wireRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}

		for i := 0; i < 2; i++ {
			h := HeaderResponse{Header: types.SignedBlockHeader{
				Header: types.BlockHeader{
					Number: types.BlockNumber(req.Iteration.Start) + types.BlockNumber(i),
					Hash:   felt.MustFromHex("0x1"),
				},
			}}
			payload, _ := json.Marshal(h)
			if err := conn.WriteJSON(wireFrame{Payload: payload}); err != nil {
				return
			}
		}
		conn.WriteJSON(wireFrame{Fin: true})
	}))
}

func TestWSClientStreamsHeadersUntilFin(t *testing.T) {
	srv := echoHeaderServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(func(peer types.PeerID) (string, error) { return wsURL, nil })
	defer client.Close()

	ch, err := client.SendHeaders("peer-a", Iteration{Start: 10, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}

	var got []types.BlockNumber
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Err != nil {
				t.Fatal(msg.Err)
			}
			if msg.Fin {
				if len(got) != 2 || got[0] != 10 || got[1] != 11 {
					t.Fatalf("unexpected sequence: %v", got)
				}
				return
			}
			got = append(got, msg.Item.Header.Header.Number)
		case <-timeout:
			t.Fatal("timed out waiting for Fin")
		}
	}
}
