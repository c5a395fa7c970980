// Command livebot fills a setup lobby with bots and lets them play the pomp
// game that starts from it, exercising a running livestate server end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/livestate/game/setup"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "livebot: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "livebot",
		Usage: "play a lobby and a pomp game with bots",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "livestate server URL"},
			&cli.StringFlag{Name: "lobby", Usage: "lobby id (default: random)"},
			&cli.IntFlag{Name: "bots", Value: 2, Usage: "number of bots"},
			&cli.IntFlag{Name: "target", Value: 10, Usage: "points that end the game"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute, Usage: "give up after this long"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	newLogger := zap.NewProduction
	if cmd.Bool("v") {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	bots := cmd.Int("bots")
	if bots < 1 {
		return fmt.Errorf("need at least one bot, got %d", bots)
	}
	lobby := cmd.String("lobby")
	if lobby == "" {
		lobby = uuid.NewString()[:8]
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	results, err := playLobby(ctx, cmd.String("url"), lobby, bots, cmd.Int("target"), logger)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Lobby %s (%s)\n", lobby, setup.Route(lobby))
	for _, r := range results {
		mark := " "
		if r.Won {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-12s %3d points %3d cards\n", mark, r.Name, r.Points, r.Cards)
	}
	return nil
}

// playLobby connects every bot before any of them plays, so the starter sees
// the full lobby.
func playLobby(ctx context.Context, serverURL, lobby string, bots, target int, logger *zap.Logger) ([]Result, error) {
	route := setup.Route(lobby)

	players := make([]*Bot, 0, bots)
	defer func() {
		for _, b := range players {
			b.Close()
		}
	}()
	for i := range bots {
		b, err := Dial(ctx, serverURL, route, fmt.Sprintf("bot-%d", i+1), logger)
		if err != nil {
			return nil, err
		}
		players = append(players, b)
	}

	results := make([]Result, bots)
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range players {
		g.Go(func() error {
			r, err := b.Play(gctx, i == 0, bots, target)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
