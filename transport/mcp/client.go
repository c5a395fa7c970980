package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/livestate/api"
	"github.com/wricardo/livestate/live/host"
	"github.com/wricardo/livestate/live/registry"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"livestate",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`livestate - MCP Interface

Read-only introspection of a running livestate server. Every tool proxies to
the REST API; nothing here can change a route's state.

AVAILABLE TOOLS:
- list_route_kinds: Route patterns the server can host
- list_routes: Live routes with subscriber and event counters
- get_route: Counters for a single live route
- server_status: Uptime, session count and process usage
- live_protocol: How browser clients talk to the /ws endpoint`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_route_kinds",
		Description: "List the route kinds the server knows, with their patterns",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListKinds)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_routes",
		Description: "List every live route, optionally filtered by kind",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Only list routes of this kind, e.g. pomp (optional)",
				},
			},
		},
	}, c.handleListRoutes)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_route",
		Description: "Get counters for one live route",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Concrete route name, e.g. /setup/abc",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetRoute)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_status",
		Description: "Get server uptime, connected sessions and process usage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "live_protocol",
		Description: "Describe the WebSocket protocol spoken on /ws",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProtocol)
}

// GetMCPServer returns the underlying MCP server for HTTP handling
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes a GET request to the REST API and decodes the JSON answer into result.
func (c *Client) apiCall(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListKinds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var kinds []registry.RouteInfo
	if err := c.apiCall(ctx, "/api/kinds", &kinds); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatKinds(kinds)), nil
}

func (c *Client) handleListRoutes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := request.GetString("kind", "")

	path := "/api/routes"
	if kind != "" {
		path += "?kind=" + url.QueryEscape(kind)
	}

	var routes []host.Stats
	if err := c.apiCall(ctx, path, &routes); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(routes) == 0 {
		if kind != "" {
			return mcp.NewToolResultText(fmt.Sprintf("No live %s routes.", kind)), nil
		}
		return mcp.NewToolResultText("No live routes. Routes are created when the first client connects."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Live routes (%d):\n", len(routes))
	for i := range routes {
		b.WriteString("\n")
		b.WriteString(formatStats(&routes[i]))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name = "/" + strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "/" {
		return mcp.NewToolResultError("route name must not be empty"), nil
	}

	var stats host.Stats
	if err := c.apiCall(ctx, "/api/routes"+name, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStats(&stats)), nil
}

func (c *Client) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status api.Status
	if err := c.apiCall(ctx, "/api/status", &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStatus(&status)), nil
}

func (c *Client) handleProtocol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolText), nil
}

const protocolText = `livestate WebSocket protocol

CONNECTING:
  GET /ws?uuid=<uuid>&route=<route>
  - uuid must be a UUID; anything else is rejected with 401
  - route defaults to the server's initial route (usually /counter)
  - unknown or seed-only routes are rejected with 404

SERVER TO CLIENT:
  Text frames carrying {"route": "<kind>", "data": <view>}
  - route is the route KIND (counter, setup, pomp, wedding), not the full name
  - a frame is only sent when it differs from the previous one
  - after a handoff the first frame carries the new kind

CLIENT TO SERVER:
  Text frames carrying one event of the current route's kind.
  Events that do not decode are dropped silently.

  counter:  "Increment" | "Decrement"
  setup:    {"SetName": "alice"} | {"SetReady": true} | "StartGame"
  pomp:     {"Buy": "Fire"} | {"BuyCard": 3}
  wedding:  {"SetName": "bob"} | {"SetGuess": "Bride"} |
            {"SetQuestion": 0} | {"SetQuestion": null} |
            {"SetQuestionState": [0, "Open"]}

HANDOFFS:
  A route may move all of its clients to another route, e.g. a setup lobby
  starting a pomp game. Clients do nothing: the next frame simply comes from
  the new route.

HEARTBEAT:
  The server pings periodically and closes connections that stop answering.`

func formatKinds(kinds []registry.RouteInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Route kinds (%d):\n", len(kinds))
	for _, k := range kinds {
		var notes []string
		if k.Parameterized {
			notes = append(notes, "parameterized")
		}
		if !k.Lazy {
			notes = append(notes, "created by handoff only")
		}
		line := fmt.Sprintf("- %s %s", k.Kind, k.Pattern)
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatStats(s *host.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Route: %s\n", s.Route)
	fmt.Fprintf(&b, "Kind: %s\n", s.Kind)
	fmt.Fprintf(&b, "Subscribers: %d (%d users)\n", s.Subscribers, s.Users)
	fmt.Fprintf(&b, "Events: %d (%d dropped)\n", s.Events, s.DroppedEvents)
	if s.TickInterval > 0 {
		fmt.Fprintf(&b, "Ticks: %d every %s\n", s.Ticks, s.TickInterval)
	}
	if s.Handoffs > 0 {
		fmt.Fprintf(&b, "Handoffs: %d\n", s.Handoffs)
	}
	return b.String()
}

func formatStatus(s *api.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", s.Version)
	fmt.Fprintf(&b, "Uptime: %s\n", s.Uptime)
	fmt.Fprintf(&b, "Live routes: %d\n", s.Routes)
	fmt.Fprintf(&b, "Sessions: %d\n", s.Sessions)
	fmt.Fprintf(&b, "Goroutines: %d\n", s.Goroutines)
	if p := s.Process; p != nil {
		fmt.Fprintf(&b, "Process: pid %d, %.1f MiB RSS, %d threads, %.1f%% CPU\n",
			p.PID, float64(p.RSSBytes)/(1<<20), p.Threads, p.CPUPercent)
	}
	return b.String()
}
