// Package realtime serves /ws-api, the WebSocket endpoint clients use to
// receive live updates.
//
// FRAMES:
// Every message in either direction is a JSON object {"type", "data"}.
// Server pushes also carry the channel they were published on:
//
//	→ {"type":"subscribe","data":{"channel":"waste-reports"}}
//	← {"type":"subscribed","data":{"channel":"waste-reports"}}
//	← {"type":"waste_report_updated","channel":"waste-reports","data":{...}}
//
// HOW A PUSH TRAVELS:
//
//	Service → Hub.Publish → client.send (buffered chan) → writePump → socket
//
// Publish never blocks the service that calls it. A client whose buffer is
// full is too slow to keep up and gets disconnected.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenpath/greenpath/internal/auth"
	"github.com/greenpath/greenpath/internal/metrics"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
	"github.com/greenpath/greenpath/internal/service"
)

var _ service.Notifier = (*Hub)(nil)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Frame is the envelope for every message.
type Frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hub tracks open connections and fans published messages out to the ones
// subscribed to the channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHub builds a hub. allowedOrigins lists the browser origins that may
// connect ("*" allows any); when empty only same-host pages may connect.
func NewHub(allowedOrigins []string, m *metrics.Metrics, logger *slog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		metrics: m,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ServeHTTP upgrades the request. Anonymous connections are accepted; they
// may subscribe to the public channels only.
//
// HTTP: GET /ws-api
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the 4xx response.
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	c := newClient(h, conn, user)
	if user != nil {
		c.subscribe(service.UserChannel(user.ID))
	}

	h.register(c)
	go c.writePump()
	go c.readPump()
}

// Publish sends kind/data to every client subscribed to channel. On the
// shared feeds each client only receives records inside its list scope.
func (h *Hub) Publish(channel, kind string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("encoding realtime payload",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return
	}
	msg, err := json.Marshal(Frame{Type: kind, Channel: channel, Data: payload})
	if err != nil {
		return
	}

	_, feed := feeds[channel]

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.subscribed(channel) {
			continue
		}
		if feed && !visible(c.user, data) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", slog.String("client", c.id()))
		h.unregister(c)
	}
}

// Connections reports the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
	h.logger.Debug("websocket connected", slog.String("client", c.id()))
}

// unregister is idempotent; both pumps call it on their way out.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.ConnectionClosed()
		h.logger.Debug("websocket disconnected", slog.String("client", c.id()))
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients), origins on the allow list, and otherwise same-host origins.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}

// feeds are the shared channels that carry whole records, with the roles
// whose list view reaches past their own records. Everyone else follows
// their own records on "user:<id>".
var feeds = map[string]struct {
	resource policy.Resource
	roles    []model.Role
}{
	service.ChannelWasteReports: {policy.WasteReport, []model.Role{model.RoleDealer, model.RoleOrganization, model.RoleAdmin}},
	service.ChannelDonations:    {policy.Donation, []model.Role{model.RoleOrganization, model.RoleAdmin}},
}

// canSubscribe keeps personal channels private: "user:<id>" is readable by
// that user and by admins only.
func canSubscribe(user *model.User, channel string) bool {
	if feed, ok := feeds[channel]; ok {
		if user == nil || !slices.Contains(feed.roles, user.Role) {
			return false
		}
		return policy.Authorize(policy.Request{Actor: user, Resource: feed.resource, Action: policy.List}) == nil
	}
	if channel == service.ChannelEvents || isEventChannel(channel) {
		return true
	}
	if user == nil {
		return false
	}
	return user.Role == model.RoleAdmin || channel == service.UserChannel(user.ID)
}

// visible reports whether a feed record is one the subscriber could list
// over REST. A dealer gets the pending queue plus its own pickups; an
// organization gets the available donations plus the ones it requested.
// Anything that is not a known record stays off the feeds.
func visible(user *model.User, data any) bool {
	if user == nil {
		return false
	}
	switch v := data.(type) {
	case *model.WasteReport:
		return inScope(user, v, policy.ScopeWasteReports, model.WasteReportFilter.Match)
	case *model.Donation:
		return inScope(user, v, policy.ScopeDonations, model.DonationFilter.Match)
	}
	return false
}

// inScope tries both list views a role has (the general one and "mine").
func inScope[F, T any](user *model.User, record T, scope func(*model.User, bool) (F, error), match func(F, T) bool) bool {
	for _, mine := range []bool{false, true} {
		f, err := scope(user, mine)
		if err == nil && match(f, record) {
			return true
		}
	}
	return false
}
