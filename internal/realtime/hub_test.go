package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/auth"
	"github.com/greenpath/greenpath/internal/metrics"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

// startHub serves the hub with user (nil for anonymous) already in the
// request context, the way OptionalAuth leaves it.
func startHub(t *testing.T, user *model.User) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil, metrics.New(), slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			r = r.WithContext(auth.WithUser(r.Context(), user, auth.Session{UserID: user.ID}))
		}
		hub.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, kind string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Type: kind, Data: payload}))
}

func next(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHub_Ping(t *testing.T) {
	_, srv := startHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, "ping", nil)
	assert.Equal(t, "pong", next(t, conn).Type)

	send(t, conn, "request_update", nil)
	assert.Equal(t, "update_requested", next(t, conn).Type)

	send(t, conn, "user_activity", map[string]string{"page": "/events"})
	assert.Equal(t, "activity_received", next(t, conn).Type)

	send(t, conn, "dance", nil)
	f := next(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Data), "unknown message type")
}

func TestHub_SubscribeAndPublish(t *testing.T) {
	bilal := &model.User{ID: 2, Username: "bilal", Role: model.RoleDealer}
	hub, srv := startHub(t, bilal)
	conn := dial(t, srv)

	send(t, conn, "subscribe", map[string]string{"channel": service.ChannelWasteReports})
	f := next(t, conn)
	require.Equal(t, "subscribed", f.Type)
	assert.JSONEq(t, `{"channel":"waste-reports"}`, string(f.Data))

	hub.Publish(service.ChannelDonations, "donation_created", &model.Donation{ID: 9, UserID: 1, Status: model.DonationAvailable})
	hub.Publish(service.ChannelWasteReports, "waste_report_created", &model.WasteReport{ID: 3, UserID: 1, Status: model.WasteReportPending})

	// Not subscribed to donations, so the first frame is the waste report.
	f = next(t, conn)
	assert.Equal(t, "waste_report_created", f.Type)
	assert.Equal(t, service.ChannelWasteReports, f.Channel)
	assert.Contains(t, string(f.Data), `"id":3`)

	// The personal channel is subscribed on connect.
	hub.Publish(service.UserChannel(2), "points_awarded", map[string]int{"points": 15})
	assert.Equal(t, "points_awarded", next(t, conn).Type)

	// Someone else's is not available.
	send(t, conn, "subscribe", map[string]string{"channel": service.UserChannel(5)})
	f = next(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, string(f.Data), "not allowed")
}

func TestHub_FeedsFollowListScope(t *testing.T) {
	bilal := &model.User{ID: 2, Username: "bilal", Role: model.RoleDealer}
	other := int64(8)
	mine := bilal.ID

	hub, srv := startHub(t, bilal)
	conn := dial(t, srv)
	send(t, conn, "subscribe", map[string]string{"channel": service.ChannelWasteReports})
	require.Equal(t, "subscribed", next(t, conn).Type)

	// Another dealer's pickup and a bare payload stay off the feed.
	hub.Publish(service.ChannelWasteReports, "waste_report_updated",
		&model.WasteReport{ID: 4, UserID: 1, Status: model.WasteReportScheduled, AssignedDealerID: &other})
	hub.Publish(service.ChannelWasteReports, "waste_report_updated", map[string]int{"id": 5})
	hub.Publish(service.ChannelWasteReports, "waste_report_updated",
		&model.WasteReport{ID: 6, UserID: 1, Status: model.WasteReportScheduled, AssignedDealerID: &mine})

	f := next(t, conn)
	assert.Equal(t, "waste_report_updated", f.Type)
	assert.Contains(t, string(f.Data), `"id":6`)
}

func TestHub_FeedsRefuseRolesWithoutListAccess(t *testing.T) {
	tests := []struct {
		name    string
		user    *model.User
		channel string
	}{
		{"dealer donations", &model.User{ID: 2, Username: "bilal", Role: model.RoleDealer}, service.ChannelDonations},
		{"customer waste reports", &model.User{ID: 1, Username: "asha", Role: model.RoleCustomer}, service.ChannelWasteReports},
		{"customer donations", &model.User{ID: 1, Username: "asha", Role: model.RoleCustomer}, service.ChannelDonations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, srv := startHub(t, tt.user)
			conn := dial(t, srv)

			send(t, conn, "subscribe", map[string]string{"channel": tt.channel})
			f := next(t, conn)
			assert.Equal(t, "error", f.Type)
			assert.Contains(t, string(f.Data), "not allowed")

			// A refused client gets nothing from the feed.
			hub.Publish(tt.channel, "created", &model.Donation{ID: 1, UserID: 9, Status: model.DonationAvailable})
			hub.Publish(tt.channel, "created", &model.WasteReport{ID: 1, UserID: 9, Status: model.WasteReportPending})
			send(t, conn, "ping", nil)
			assert.Equal(t, "pong", next(t, conn).Type)
		})
	}
}

func TestVisible(t *testing.T) {
	org := &model.User{ID: 4, Role: model.RoleOrganization}
	admin := &model.User{ID: 7, Role: model.RoleAdmin}
	orgID, otherOrg := org.ID, int64(5)

	available := &model.Donation{ID: 1, UserID: 1, Status: model.DonationAvailable}
	requestedByMe := &model.Donation{ID: 2, UserID: 1, Status: model.DonationRequested, RequestedByOrganizationID: &orgID}
	requestedByOther := &model.Donation{ID: 3, UserID: 1, Status: model.DonationRequested, RequestedByOrganizationID: &otherOrg}

	assert.True(t, visible(org, available))
	assert.True(t, visible(org, requestedByMe))
	assert.False(t, visible(org, requestedByOther))
	assert.True(t, visible(admin, requestedByOther))
	assert.False(t, visible(nil, available))
	assert.False(t, visible(admin, map[string]int{"id": 1}))
}

func TestHub_JoinEventRoom(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, "join_event_room", map[string]int{"eventId": 5})
	f := next(t, conn)
	require.Equal(t, "joined_event_room", f.Type)
	assert.JSONEq(t, `{"eventId":5,"channel":"event:5"}`, string(f.Data))

	hub.Publish(service.EventChannel(6), "participant_joined", map[string]int{"eventId": 6})
	hub.Publish(service.EventChannel(5), "participant_joined", map[string]int{"eventId": 5})
	f = next(t, conn)
	assert.Equal(t, "event:5", f.Channel)

	send(t, conn, "join_event_room", map[string]string{"eventId": "five"})
	assert.Equal(t, "error", next(t, conn).Type)
}

func TestHub_AnonymousChannels(t *testing.T) {
	_, srv := startHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, "subscribe", map[string]string{"channel": service.ChannelWasteReports})
	assert.Equal(t, "error", next(t, conn).Type)

	send(t, conn, "subscribe", map[string]string{"channel": service.ChannelEvents})
	assert.Equal(t, "subscribed", next(t, conn).Type)
}

func TestHub_ConnectionsAreTracked(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv)

	send(t, conn, "ping", nil)
	next(t, conn)
	assert.Equal(t, 1, hub.Connections())
	scrape := httptest.NewRecorder()
	hub.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "greenpath_realtime_connections 1")

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://greenpath.example/ws-api", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	sameHost := originChecker(nil)
	assert.True(t, sameHost(req("")))
	assert.True(t, sameHost(req("http://greenpath.example")))
	assert.False(t, sameHost(req("http://evil.example")))

	listed := originChecker([]string{"http://localhost:5173"})
	assert.True(t, listed(req("http://localhost:5173")))
	assert.False(t, listed(req("http://greenpath.example")))

	assert.True(t, originChecker([]string{"*"})(req("http://anything.example")))
}

func TestCanSubscribe(t *testing.T) {
	admin := &model.User{ID: 7, Role: model.RoleAdmin}
	dealer := &model.User{ID: 3, Role: model.RoleDealer}
	customer := &model.User{ID: 1, Role: model.RoleCustomer}
	org := &model.User{ID: 4, Role: model.RoleOrganization}

	tests := []struct {
		name    string
		user    *model.User
		channel string
		want    bool
	}{
		{"anonymous events", nil, "events", true},
		{"anonymous event room", nil, "event:4", true},
		{"anonymous donations", nil, "donations", false},
		{"dealer waste reports", dealer, "waste-reports", true},
		{"dealer donations", dealer, "donations", false},
		{"customer waste reports", customer, "waste-reports", false},
		{"customer donations", customer, "donations", false},
		{"organization donations", org, "donations", true},
		{"organization waste reports", org, "waste-reports", true},
		{"dealer own channel", dealer, "user:3", true},
		{"dealer other channel", dealer, "user:4", false},
		{"admin any user channel", admin, "user:4", true},
		{"malformed event room", dealer, "event:x", false},
		{"unknown channel", dealer, "payments", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canSubscribe(tt.user, tt.channel))
		})
	}
}
