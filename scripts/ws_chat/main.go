package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

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
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "user id to join as")
	peer := flag.String("peer", "", "user id to chat with")
	flag.Parse()

	if *peer == "" {
		return errors.New("-peer is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{UserID: *user}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s, chatting with %s\n", *addr, *user, *peer)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, *peer)
	}()

	writeLoop(ctx, conn, *peer)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, peer string) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if f.Error != nil {
			fmt.Printf("! %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventNameNewMessage:
			var msg proto.Message
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				log.Printf("unmarshal newMessage: %v", err)
				continue
			}
			fmt.Printf("%s: %s\n", msg.SenderID, msg.Content)
			if msg.SenderID == peer {
				if err := send(ctx, conn, proto.InboundTypeMarkAsRead, proto.MarkAsReadData{SenderID: peer}); err != nil {
					log.Printf("%v", err)
				}
			}
		case proto.EventNameUserTyping:
			var evt proto.EventUserTyping
			if err := json.Unmarshal(f.Data, &evt); err == nil && evt.IsTyping {
				fmt.Printf("(%s is typing)\n", evt.UserID)
			}
		case proto.EventNameMessagesRead:
			var evt proto.EventMessagesRead
			if err := json.Unmarshal(f.Data, &evt); err == nil {
				fmt.Printf("(read by %s)\n", evt.ReadBy)
			}
		case proto.EventNameJoined:
			var evt proto.EventJoined
			if err := json.Unmarshal(f.Data, &evt); err == nil && evt.Superseded {
				fmt.Println("(took over an older session)")
			}
		case proto.EventNameMessageConfirmed:
		default:
			fmt.Printf("event=%s data=%s\n", f.Event, string(f.Data))
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, peer string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if err := send(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RecipientID: peer, Content: text}); err != nil {
				log.Printf("%v", err)
				return
			}
		}
	}
}
