package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"rocket/internal/game"
)

type wsCommand struct {
	Type        string  `json:"type"`
	USDAmount   float64 `json:"usd_amount,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

// gameWebSocketHandler serves the live round feed and accepts bet/cashout
// commands over the same connection. The player identity comes from the
// upstream auth layer; here it arrives as a query parameter.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	playerID := conn.Query("player_id", "anonymous")

	client := s.hub.RegisterClient(conn, playerID)
	client.Send(game.WSMessage{Type: "initial_state", Data: s.engine.Snapshot()})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.hub.UnregisterClient(client)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case "place_bet":
			result, err := s.engine.PlaceBet(context.Background(), game.BetRequest{
				PlayerID:    playerID,
				USDAmount:   cmd.USDAmount,
				Currency:    cmd.Currency,
				AutoCashout: cmd.AutoCashout,
			})
			if err != nil {
				client.Send(game.WSMessage{Type: "bet_rejected", Data: err.Error()})
				continue
			}
			client.Send(game.WSMessage{Type: "bet_accepted", Data: result})

		case "cashout":
			result, err := s.engine.CashOut(context.Background(), playerID)
			if err != nil {
				client.Send(game.WSMessage{Type: "cashout_rejected", Data: err.Error()})
				continue
			}
			client.Send(game.WSMessage{Type: "cashout_accepted", Data: result})

		case "ping":
			client.Send(game.WSMessage{Type: "pong"})

		default:
			log.Printf("[WS] Unknown command %q from player %s", cmd.Type, playerID)
		}
	}
}
