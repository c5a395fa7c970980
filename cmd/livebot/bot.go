package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/livestate/game/pomp"
	"github.com/wricardo/livestate/game/setup"
	livews "github.com/wricardo/livestate/transport/websocket"
	"go.uber.org/zap"
)

// Bot is one simulated user connected over WebSocket.
type Bot struct {
	name string
	user string
	conn *websocket.Conn
	log  *zap.Logger
}

// Result is what a bot reached before stopping.
type Result struct {
	Name   string
	Points int
	Cards  int
	Won    bool
}

// Dial connects a new user to route on the server at serverURL.
func Dial(ctx context.Context, serverURL, route, name string, logger *zap.Logger) (*Bot, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	user := uuid.NewString()
	u.RawQuery = url.Values{"uuid": {user}, "route": {route}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s", u.Redacted(), resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	return &Bot{
		name: name,
		user: user,
		conn: conn,
		log:  logger.With(zap.String("bot", name)),
	}, nil
}

// Close closes the connection.
func (b *Bot) Close() error {
	return b.conn.Close()
}

func (b *Bot) send(v any) error {
	return b.conn.WriteJSON(v)
}

func (b *Bot) next() (livews.Envelope, error) {
	var env livews.Envelope
	err := b.conn.ReadJSON(&env)
	return env, err
}

// Play joins the lobby as ready and plays the game until a player reaches
// target points or ctx ends. The starter sends StartGame once players bots are
// ready.
func (b *Bot) Play(ctx context.Context, starter bool, players, target int) (Result, error) {
	result := Result{Name: b.name}

	stop := context.AfterFunc(ctx, func() { b.conn.Close() })
	defer stop()

	if err := b.send(Move{"SetName": b.name}); err != nil {
		return result, err
	}
	if err := b.send(Move{"SetReady": true}); err != nil {
		return result, err
	}

	started := false
	for {
		env, err := b.next()
		if err != nil {
			if ctx.Err() != nil {
				return result, nil
			}
			return result, fmt.Errorf("%s: %w", b.name, err)
		}

		switch env.Route {
		case setup.Kind:
			var view setup.View
			if err := json.Unmarshal(env.Data, &view); err != nil {
				return result, fmt.Errorf("%s: decode lobby: %w", b.name, err)
			}
			ready := make([]bool, len(view.Data))
			for i, p := range view.Data {
				ready[i] = p.IsReady
			}
			if starter && !started && lobbyReady(ready, players) {
				b.log.Info("starting game", zap.Int("players", len(view.Data)))
				if err := b.send("StartGame"); err != nil {
					return result, err
				}
				started = true
			}

		case pomp.Kind:
			var view pomp.View
			if err := json.Unmarshal(env.Data, &view); err != nil {
				return result, fmt.Errorf("%s: decode game: %w", b.name, err)
			}
			if view.MyInventory == nil {
				return result, fmt.Errorf("%s: joined the game as a spectator", b.name)
			}

			inv := view.MyInventory
			result.Points = inv.Points
			result.Cards = inv.Discount.Total()
			if inv.Points >= target {
				result.Won = true
				b.log.Info("reached target", zap.Int("points", inv.Points))
				return result, nil
			}
			for _, other := range view.Others {
				if other.Points >= target {
					b.log.Info("lost", zap.String("winner", other.Name), zap.Int("points", inv.Points))
					return result, nil
				}
			}

			if move, ok := nextMove(view); ok {
				b.log.Debug("move", zap.Any("move", move))
				if err := b.send(move); err != nil {
					return result, err
				}
			}

		default:
			b.log.Warn("ignoring unexpected route", zap.String("route", env.Route))
		}
	}
}
