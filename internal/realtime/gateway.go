// Package realtime contains Slate's room-scoped event-broadcast layer: the
// websocket gateway, the per-event gate pipeline, canvas rooms, and the
// ephemeral cursor/presence trackers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	v1 "slate/contracts/realtime/v1"
	"slate/internal/canvas"
	"slate/internal/identity"
	"slate/internal/kv"
	"slate/internal/metrics"
	"slate/internal/ratelimit"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "slate.realtime.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Deps are the collaborators the gateway composes.
type Deps struct {
	Hub      *Hub
	Canvases canvas.Store
	Verifier identity.Verifier
	Limiter  *ratelimit.Limiter
	KV       kv.Store
	Metrics  *metrics.Metrics

	// Sanitizer may be nil; DefaultSanitizer is used then.
	Sanitizer Sanitizer
}

// Gateway is the WebSocket entrypoint for Slate realtime.
//
// It enforces origin policy, subprotocol selection, and heartbeats, and runs
// every inbound event through the gate pipeline before dispatching it.
type Gateway struct {
	log *slog.Logger
	hub *Hub

	canvases  canvas.Store
	verifier  identity.Verifier
	limiter   *ratelimit.Limiter
	sanitizer Sanitizer
	metrics   *metrics.Metrics

	cursors  *CursorTracker
	presence *PresenceTracker

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// NewGateway constructs a gateway with secure defaults.
func NewGateway(log *slog.Logger, deps Deps) *Gateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(log)
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = DefaultSanitizer{}
	}
	if deps.KV == nil {
		deps.KV = kv.NewMemoryStore()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(log, ratelimit.WithStore(deps.KV))
	}
	if deps.Canvases == nil {
		deps.Canvases = canvas.NewMemoryStore()
	}
	if deps.Verifier == nil {
		deps.Verifier = identity.NewStaticVerifier()
	}

	g := &Gateway{
		log:       log,
		hub:       deps.Hub,
		canvases:  deps.Canvases,
		verifier:  deps.Verifier,
		limiter:   deps.Limiter,
		sanitizer: deps.Sanitizer,
		metrics:   deps.Metrics,
		cursors:   NewCursorTracker(log, deps.KV),
		presence:  NewPresenceTracker(log, deps.KV),
	}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolWS("SLATE_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("SLATE_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("SLATE_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy:
	// - same-host is ok
	// - cross-origin requires OriginPatterns (host patterns)
	// We derive these patterns from allowed origins so the two layers agree.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("SLATE_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("SLATE_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("SLATE_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("SLATE_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("SLATE_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	return g
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the realtime loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{wsSubprotocolV1},

		// Authorize allowed origin hosts (e.g. localhost) for cross-origin requests.
		OriginPatterns: g.originPatterns,

		// Dev-only escape hatch.
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID := newID(time.Now().UTC())
	client := NewClient(sessionID, remoteIP(r), g.sendQueueSize)

	if g.metrics != nil {
		g.metrics.Connections.Inc()
		defer g.metrics.Connections.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		closeOnce sync.Once
		joined    *Room
	)

	// shutdown is idempotent. It does NOT close client.Send.
	// Broadcast safety: client.Send remains open and membership removal happens before client.Close.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			if joined != nil {
				g.announceDeparture(joined, client)
				joined = nil
			}

			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, validationError("bad_json", "invalid JSON"))
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		ev := &eventContext{
			ctx:    ctx,
			env:    env,
			now:    time.Now().UTC(),
			client: client,
			room:   joined,
		}

		if err := g.runGate(ev); err != nil {
			g.countEvent(env.Type, "denied")
			g.trySendError(ctx, client, asGateError(err))
			continue readLoop
		}

		g.countEvent(env.Type, "ok")
		joined = ev.room
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// announceDeparture removes the client from a room and tells the remaining
// members. Ephemeral records are left to TTL expiry on disconnect.
func (g *Gateway) announceDeparture(room *Room, client *Client) {
	room.Leave(client.SessionID)

	userID, name := g.identityOf(client)
	payload := mustJSON(v1.UserEventPayload{CanvasID: room.CanvasID, UserID: userID, Name: name})
	room.Broadcast(g.newEnvelope(v1.TypeUserLeft, payload))
	g.countBroadcast(v1.TypeUserLeft)
}

func (g *Gateway) identityOf(client *Client) (userID, name string) {
	if p := client.Principal(); p != nil {
		return p.ID, p.Name
	}
	return "ip:" + client.RemoteIP, ""
}

// ---- event handlers ----

func (g *Gateway) onJoinCanvas(ev *eventContext) error {
	room := g.hub.GetOrCreateRoom(ev.canvasID)

	// A connection belongs to at most one canvas room; a new join replaces
	// the prior one.
	if ev.room != nil && ev.room.CanvasID != room.CanvasID {
		g.announceDeparture(ev.room, ev.client)
	}

	room.Join(ev.client)
	ev.room = room

	// Ack before announcing. If the ack cannot be queued the join is rolled
	// back, and a member that was never announced needs no departure.
	ack := mustJSON(v1.JoinedCanvasPayload{
		CanvasID:    room.CanvasID,
		MemberCount: room.MemberCount(),
		OnlineUsers: g.presence.Snapshot(ev.ctx, room.CanvasID),
	})
	if !g.enqueue(ev.ctx, ev.client, g.newEnvelope(v1.TypeJoinedCanvas, ack)) {
		room.Leave(ev.client.SessionID)
		ev.room = nil
		return infrastructureError("backpressure: join ack", nil)
	}

	userID, name := ev.subject, ""
	if ev.principal != nil {
		name = ev.principal.Name
	}

	joinedPayload := mustJSON(v1.UserEventPayload{CanvasID: room.CanvasID, UserID: userID, Name: name})
	room.BroadcastExcept(ev.client.SessionID, g.newEnvelope(v1.TypeUserJoined, joinedPayload))
	g.countBroadcast(v1.TypeUserJoined)
	return nil
}

func (g *Gateway) onLeaveCanvas(ev *eventContext) error {
	room := g.hub.GetOrCreateRoom(ev.canvasID)
	if !room.Has(ev.client.SessionID) {
		return validationError("not_joined", "not a member of this canvas")
	}

	// An explicit leave destroys the ephemeral records immediately instead
	// of waiting out the TTLs.
	userID, name := g.identityOf(ev.client)
	g.cursors.Remove(ev.ctx, room.CanvasID, userID)
	g.presence.Remove(ev.ctx, room.CanvasID, userID)

	room.Leave(ev.client.SessionID)
	if ev.room == room {
		ev.room = nil
	}

	payload := mustJSON(v1.UserEventPayload{CanvasID: room.CanvasID, UserID: userID, Name: name})
	room.Broadcast(g.newEnvelope(v1.TypeUserLeft, payload))
	g.countBroadcast(v1.TypeUserLeft)
	return nil
}

func (g *Gateway) onObjectCreate(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}
	p := ev.payload.(v1.ObjectCreatePayload)

	// Persist-then-broadcast under the room's commit lock so broadcast
	// order matches commit order.
	ev.room.commitMu.Lock()
	defer ev.room.commitMu.Unlock()

	obj, err := g.canvases.CreateObject(ev.ctx, canvas.CreateObjectInput{
		CanvasID: p.CanvasID,
		UserID:   ev.subject,
		Data:     p.Object,
		Now:      ev.now,
	})
	if err != nil {
		if errors.Is(err, canvas.ErrNotFound) {
			return canvasNotFound(p.CanvasID)
		}
		// Persistence failures are never swallowed.
		return infrastructureError("object create failed", err)
	}

	payload := mustJSON(v1.ObjectEventPayload{
		CanvasID: obj.CanvasID,
		ObjectID: obj.ID,
		UserID:   ev.subject,
		Object:   obj.Data,
	})
	// Deliberately includes the originator so optimistic local state
	// reconciles with the authoritative server copy.
	ev.room.Broadcast(g.newEnvelope(v1.TypeObjectCreate, payload))
	g.countBroadcast(v1.TypeObjectCreate)
	return nil
}

func (g *Gateway) onObjectUpdate(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}
	p := ev.payload.(v1.ObjectUpdatePayload)

	ev.room.commitMu.Lock()
	defer ev.room.commitMu.Unlock()

	obj, err := g.canvases.UpdateObject(ev.ctx, canvas.UpdateObjectInput{
		CanvasID:   p.CanvasID,
		UserID:     ev.subject,
		ObjectID:   p.ObjectID,
		Properties: p.Properties,
		Now:        ev.now,
	})
	if err != nil {
		if errors.Is(err, canvas.ErrNotFound) {
			return canvasNotFound(p.CanvasID)
		}
		return infrastructureError("object update failed", err)
	}

	payload := mustJSON(v1.ObjectEventPayload{
		CanvasID:   obj.CanvasID,
		ObjectID:   obj.ID,
		UserID:     ev.subject,
		Properties: p.Properties,
		Object:     obj.Data,
	})
	ev.room.Broadcast(g.newEnvelope(v1.TypeObjectUpdate, payload))
	g.countBroadcast(v1.TypeObjectUpdate)
	return nil
}

func (g *Gateway) onObjectDelete(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}
	p := ev.payload.(v1.ObjectDeletePayload)

	ev.room.commitMu.Lock()
	defer ev.room.commitMu.Unlock()

	if err := g.canvases.DeleteObject(ev.ctx, p.CanvasID, p.ObjectID); err != nil {
		if errors.Is(err, canvas.ErrNotFound) {
			return canvasNotFound(p.CanvasID)
		}
		return infrastructureError("object delete failed", err)
	}

	payload := mustJSON(v1.ObjectEventPayload{
		CanvasID: p.CanvasID,
		ObjectID: p.ObjectID,
		UserID:   ev.subject,
	})
	ev.room.Broadcast(g.newEnvelope(v1.TypeObjectDelete, payload))
	g.countBroadcast(v1.TypeObjectDelete)
	return nil
}

func (g *Gateway) onCursorMove(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}
	p := ev.payload.(v1.CursorMovePayload)

	name := ""
	if ev.principal != nil {
		name = ev.principal.Name
	}
	info := v1.CursorInfo{
		UserID:    ev.subject,
		Name:      name,
		Position:  p.Position,
		Timestamp: ev.now,
	}
	g.cursors.Set(ev.ctx, p.CanvasID, info)

	// The originator does not receive its own cursor back.
	ev.room.BroadcastExcept(ev.client.SessionID, g.newEnvelope(v1.TypeCursorMoved, mustJSON(info)))
	g.countBroadcast(v1.TypeCursorMoved)
	return nil
}

func (g *Gateway) onCursorLeave(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}

	g.cursors.Remove(ev.ctx, ev.canvasID, ev.subject)

	payload := mustJSON(v1.UserEventPayload{CanvasID: ev.canvasID, UserID: ev.subject})
	ev.room.BroadcastExcept(ev.client.SessionID, g.newEnvelope(v1.TypeCursorLeft, payload))
	g.countBroadcast(v1.TypeCursorLeft)
	return nil
}

func (g *Gateway) onUserOnline(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}

	info := v1.PresenceInfo{UserID: ev.subject, Timestamp: ev.now}
	if ev.principal != nil {
		info.Name = ev.principal.Name
		info.Email = ev.principal.Email
		info.Avatar = ev.principal.Avatar
	}
	g.presence.Set(ev.ctx, ev.canvasID, info)

	ev.room.BroadcastExcept(ev.client.SessionID, g.newEnvelope(v1.TypeUserCameOnline, mustJSON(info)))
	g.countBroadcast(v1.TypeUserCameOnline)
	return nil
}

func (g *Gateway) onUserOffline(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}

	g.presence.Remove(ev.ctx, ev.canvasID, ev.subject)

	payload := mustJSON(v1.UserEventPayload{CanvasID: ev.canvasID, UserID: ev.subject})
	ev.room.BroadcastExcept(ev.client.SessionID, g.newEnvelope(v1.TypeUserWentOffline, payload))
	g.countBroadcast(v1.TypeUserWentOffline)
	return nil
}

func (g *Gateway) onHeartbeat(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}

	// Refresh TTLs only; heartbeats never broadcast.
	g.cursors.Refresh(ev.ctx, ev.canvasID, ev.subject)
	g.presence.Refresh(ev.ctx, ev.canvasID, ev.subject)
	return nil
}

func (g *Gateway) onGetCursors(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}

	payload := mustJSON(v1.CursorsDataPayload{
		CanvasID: ev.canvasID,
		Cursors:  g.cursors.Snapshot(ev.ctx, ev.canvasID),
	})
	// Snapshot goes to the requester only.
	if !g.enqueue(ev.ctx, ev.client, g.newEnvelope(v1.TypeCursorsData, payload)) {
		return infrastructureError("backpressure: cursors_data", nil)
	}
	return nil
}

func (g *Gateway) onGetOnlineUsers(ev *eventContext) error {
	if err := requireRoom(ev); err != nil {
		return err
	}

	payload := mustJSON(v1.OnlineUsersPayload{
		CanvasID: ev.canvasID,
		Users:    g.presence.Snapshot(ev.ctx, ev.canvasID),
	})
	if !g.enqueue(ev.ctx, ev.client, g.newEnvelope(v1.TypeOnlineUsers, payload)) {
		return infrastructureError("backpressure: online_users", nil)
	}
	return nil
}

// ---- send helpers ----

func (g *Gateway) trySendError(ctx context.Context, client *Client, gerr *Error) {
	env := g.newEnvelope(v1.TypeError, mustJSON(gerr.Payload()))
	_ = g.enqueue(ctx, client, env)
}

// asGateError normalizes any handler error into the wire taxonomy.
func asGateError(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return infrastructureError("internal error", err)
}

func (g *Gateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

func (g *Gateway) newEnvelope(typ string, payload []byte) v1.Envelope {
	now := time.Now().UTC()
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      newID(now),
		TS:      now,
		Payload: payload,
	}
}

func (g *Gateway) countBroadcast(typ string) {
	if g.metrics != nil {
		g.metrics.Broadcasts.WithLabelValues(typ).Inc()
	}
}

func (g *Gateway) countEvent(typ, outcome string) {
	if g.metrics != nil {
		g.metrics.EventsHandled.WithLabelValues(typ, outcome).Inc()
	}
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, errors.New("unsupported message type")
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors are typically returned by json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return errors.New("origin not allowed: " + origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
