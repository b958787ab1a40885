package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-dm/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run joins as -user, sends one message to -to and waits for the server to
// confirm it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "user id to join as")
	to := flag.String("to", "tester-peer", "recipient user id")
	text := flag.String("text", "hello from smoke test", "message content to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoin, proto.JoinData{UserID: *user}); err != nil {
		return err
	}
	tempID := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	if err := send(proto.InboundTypeSendMessage, proto.SendMessageData{
		RecipientID: *to,
		Content:     *text,
		TempID:      tempID,
	}); err != nil {
		return err
	}

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if f.Error != nil {
			return fmt.Errorf("server error %s: %s", f.Error.Code, f.Error.Msg)
		}
		fmt.Printf("Received: type=%s event=%s data=%s\n", f.Type, f.Event, string(f.Data))

		if f.Event != proto.EventNameMessageConfirmed {
			continue
		}
		var confirmed proto.EventMessageConfirmed
		if err := json.Unmarshal(f.Data, &confirmed); err != nil {
			return fmt.Errorf("unmarshal confirmation: %w", err)
		}
		if confirmed.TempID != tempID {
			continue
		}
		fmt.Printf("Confirmed: id=%s to=%s at=%s\n", confirmed.ID, confirmed.RecipientID, confirmed.CreatedAt)
		return nil
	}
}
