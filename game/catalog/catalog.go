// Package catalog lists the routes bundled with the server.
package catalog

import (
	"github.com/wricardo/livestate/game/config"
	"github.com/wricardo/livestate/game/counter"
	"github.com/wricardo/livestate/game/pomp"
	"github.com/wricardo/livestate/game/setup"
	"github.com/wricardo/livestate/game/wedding"
	"github.com/wricardo/livestate/live"
	"github.com/wricardo/livestate/live/registry"
)

// Routes returns the route definitions for every bundled module.
// Pomp games are seed-only: they start from a setup lobby.
func Routes(cfg *config.Config) []registry.Route {
	questions := wedding.DefaultQuestions
	if cfg != nil && len(cfg.Wedding.Questions) > 0 {
		questions = cfg.Wedding.Questions
	}

	return []registry.Route{
		{
			Kind:    counter.Kind,
			Pattern: counter.Pattern,
			New: func(string, map[string]string) live.State {
				return counter.NewState()
			},
		},
		{
			Kind:    setup.Kind,
			Pattern: setup.Pattern,
			New: func(_ string, vars map[string]string) live.State {
				return setup.NewState(vars["id"])
			},
		},
		{
			Kind:    pomp.Kind,
			Pattern: pomp.Pattern,
		},
		{
			Kind:    wedding.Kind,
			Pattern: wedding.Pattern,
			New: func(string, map[string]string) live.State {
				return wedding.NewState(questions)
			},
		},
	}
}
