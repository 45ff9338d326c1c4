package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	v1 "slate/contracts/realtime/v1"
	"slate/internal/canvas"
	"slate/internal/identity"
	"slate/internal/ratelimit"
)

// eventContext carries one inbound event through the gate pipeline.
// Stages validate it, enrich it, or fail it; the handler sees the final
// validated, sanitized, enriched form.
type eventContext struct {
	ctx context.Context
	env v1.Envelope
	now time.Time

	client *Client
	// room is the room the connection currently belongs to, nil before a join.
	room *Room

	// Filled by the validate stage.
	spec     *eventSpec
	payload  any
	canvasID string

	// Filled by the authenticate stage.
	principal *identity.Principal
	subject   string
	tier      ratelimit.Tier
}

// stage is one step of the gate pipeline. A non-nil error is terminal for
// the event: the executor stops and the error is reported to the client.
type stage struct {
	name string
	run  func(g *Gateway, ev *eventContext) error
}

// gatePipeline is the fixed, ordered per-event pipeline. The order is a
// hard contract: a request that is both malformed and unauthenticated must
// surface a validation error, never an authentication error.
var gatePipeline = []stage{
	{name: "validate", run: (*Gateway).stageValidate},
	{name: "sanitize", run: (*Gateway).stageSanitize},
	{name: "authenticate", run: (*Gateway).stageAuthenticate},
	{name: "authorize", run: (*Gateway).stageAuthorize},
	{name: "rate_limit", run: (*Gateway).stageRateLimit},
}

// runGate applies the pipeline stages in order, then dispatches to the
// event handler.
func (g *Gateway) runGate(ev *eventContext) error {
	for _, st := range gatePipeline {
		if err := st.run(g, ev); err != nil {
			g.log.Info("gate.stage.reject",
				"stage", st.name,
				"type", ev.env.Type,
				"session_id", ev.client.SessionID,
				"err", err,
			)
			return err
		}
	}
	return ev.spec.handle(g, ev)
}

// ---- stages ----

// stageValidate performs strict schema validation: envelope structure, a
// known event kind, and a well-formed in-range payload.
func (g *Gateway) stageValidate(ev *eventContext) error {
	if err := ev.env.Validate(); err != nil {
		return validationError("invalid_envelope", err.Error())
	}

	spec, ok := lookupEvent(ev.env.Type)
	if !ok {
		return validationError("unknown_type", "unknown event type: "+ev.env.Type)
	}
	ev.spec = spec

	payload, canvasID, err := spec.decode(ev.env.Payload)
	if err != nil {
		return validationError("invalid_payload", err.Error())
	}
	ev.payload = payload
	ev.canvasID = canvasID
	return nil
}

// sanitizeExcludedKeys are passed through unmodified inside object blobs:
// opaque identifiers must not be rewritten.
var sanitizeExcludedKeys = map[string]struct{}{
	"id":        {},
	"canvas_id": {},
	"object_id": {},
}

// stageSanitize cleans untrusted string content in object blobs. Top-level
// payload fields are either validated identifiers or opaque credentials,
// both in the exclusion set by construction.
func (g *Gateway) stageSanitize(ev *eventContext) error {
	switch p := ev.payload.(type) {
	case v1.ObjectCreatePayload:
		cleaned, err := sanitizeJSON(p.Object, g.sanitizer, sanitizeExcludedKeys)
		if err != nil {
			return validationError("invalid_payload", "object is not valid JSON")
		}
		p.Object = cleaned
		ev.payload = p
	case v1.ObjectUpdatePayload:
		cleaned, err := sanitizeJSON(p.Properties, g.sanitizer, sanitizeExcludedKeys)
		if err != nil {
			return validationError("invalid_payload", "properties is not valid JSON")
		}
		p.Properties = cleaned
		ev.payload = p
	}
	return nil
}

// stageAuthenticate resolves the caller identity. The connection-scoped
// principal is reused when present; otherwise a credential carried inline
// in the event is verified and the principal registered on the connection.
// Events with neither stay anonymous, keyed by client IP.
func (g *Gateway) stageAuthenticate(ev *eventContext) error {
	if p := ev.client.Principal(); p != nil {
		ev.principal = p
		ev.subject = p.ID
		ev.tier = ratelimit.TierStandard
		return nil
	}

	credential := inlineCredential(ev.payload)
	if credential != "" {
		principal, err := g.verifier.Verify(ev.ctx, credential)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredential) {
				return authenticationError("invalid_credential", "credential rejected")
			}
			return infrastructureError("credential verification unavailable", err)
		}
		ev.client.SetPrincipal(principal)
		ev.principal = &principal
		ev.subject = principal.ID
		ev.tier = ratelimit.TierStandard
		return nil
	}

	// Anonymous: a stricter IP-scoped key.
	ev.subject = "ip:" + ev.client.RemoteIP
	ev.tier = ratelimit.TierAnonymous
	return nil
}

func inlineCredential(payload any) string {
	switch p := payload.(type) {
	case v1.JoinCanvasPayload:
		return p.Credential
	case v1.LeaveCanvasPayload:
		return p.Credential
	default:
		return ""
	}
}

// stageAuthorize checks the required permission against the target canvas.
// A missing canvas is reported as canvas_not_found, distinct from a
// permission denial.
func (g *Gateway) stageAuthorize(ev *eventContext) error {
	required := ev.spec.permission
	if required == canvas.LevelNone {
		return nil
	}

	level, err := g.canvases.Permission(ev.ctx, ev.canvasID, ev.subject)
	if err != nil {
		if errors.Is(err, canvas.ErrNotFound) {
			return canvasNotFound(ev.canvasID)
		}
		return infrastructureError("permission lookup failed", err)
	}

	if !level.Allows(required) {
		return authorizationError("permission_denied",
			"requires "+required.String()+" permission on canvas "+ev.canvasID)
	}
	return nil
}

// stageRateLimit gates the event through the unified limiter. The limiter
// itself fails open on store errors, so this stage only ever denies on a
// genuine limit decision.
func (g *Gateway) stageRateLimit(ev *eventContext) error {
	res := g.limiter.Check(ev.ctx, ratelimit.CheckInput{
		Subject: ev.subject,
		Action:  ev.spec.action,
		IP:      ev.client.RemoteIP,
		Tier:    ev.tier,
	})
	if res.Allowed {
		return nil
	}
	return rateLimitError(res.RetryAfter, res.Reason)
}

// requireRoom ensures the connection has joined the canvas it targets.
func requireRoom(ev *eventContext) error {
	if ev.room == nil || ev.room.CanvasID != ev.canvasID {
		return validationError("not_joined", "join the canvas first")
	}
	return nil
}

// mustJSON marshals a payload that cannot fail by construction.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
