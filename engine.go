package shlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FHIRfly-io/shlink/storage"
)

// Request is the protocol-level, framework-agnostic shape the engine
// consumes. Any HTTP stack translates its own request type into this
// one; the engine has no net/http dependency, so it can sit behind any
// router or serverless handler a caller already uses.
type Request struct {
	Method  string
	Path    string
	Body    []byte
	Headers map[string]string
}

// Response is the protocol-level response the engine produces.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// CORSConfig controls the CORS headers the engine attaches to every
// response.
type CORSConfig struct {
	// Disabled turns off CORS headers entirely.
	Disabled bool
	// Origin is the value of access-control-allow-origin. Defaults to "*".
	Origin string
	// AllowHeaders is the value of access-control-allow-headers.
	// Defaults to "Content-Type, Authorization".
	AllowHeaders string
}

func (c CORSConfig) origin() string {
	if c.Origin != "" {
		return c.Origin
	}
	return "*"
}

func (c CORSConfig) allowHeaders() string {
	if c.AllowHeaders != "" {
		return c.AllowHeaders
	}
	return "Content-Type, Authorization"
}

// EngineConfig configures an Engine as an explicit configuration
// record rather than a dynamic option bag.
type EngineConfig struct {
	// Storage is the backend this engine's storage is read from and
	// mutated through. Required.
	Storage storage.ServerStorage
	// OnAccess, if set, is invoked on a spawned goroutine after every
	// successful manifest access.
	OnAccess EventSink
	// CORS controls the CORS headers attached to every response.
	CORS CORSConfig
	// Now overrides time.Now for the expiry predicate. Defaults to
	// time.Now.
	Now func() time.Time
	// Debug logs every request this engine handles.
	Debug bool
}

// Engine is a pure transformer from Request to Response over a single
// configured storage backend. It holds no state of its own between
// requests; all shared state lives behind Storage.
type Engine struct {
	cfg EngineConfig
}

// NewEngine constructs an Engine for the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// HandleRequest implements the full routing/access-control state
// machine: manifest, content, attachment and CORS-preflight routes,
// each mapped to an appropriate status code.
func (e *Engine) HandleRequest(ctx context.Context, req Request) Response {
	if e.cfg.Debug {
		logf("engine", "%s %s", req.Method, req.Path)
	}

	if req.Method == "OPTIONS" {
		return e.withCORS(Response{Status: 204, Headers: map[string]string{}})
	}

	rt, ok := matchRoute(req.Path)
	if !ok {
		return e.withCORS(Response{Status: 404})
	}
	if req.Method != rt.allowedMethod {
		return e.withCORS(Response{Status: 405})
	}

	switch rt.kind {
	case routeManifest:
		return e.withCORS(e.handleManifest(ctx, rt.shlID, req.Body))
	case routeContent:
		return e.withCORS(e.handleContent(ctx, rt.shlID))
	case routeAttachment:
		return e.withCORS(e.handleAttachment(ctx, rt.shlID, rt.attachmentIdx))
	default:
		return e.withCORS(Response{Status: 404})
	}
}

func (e *Engine) withCORS(resp Response) Response {
	if e.cfg.CORS.Disabled {
		return resp
	}
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["access-control-allow-origin"] = e.cfg.CORS.origin()
	resp.Headers["access-control-allow-methods"] = "GET, POST, OPTIONS"
	resp.Headers["access-control-allow-headers"] = e.cfg.CORS.allowHeaders()
	return resp
}

func jsonResponse(status int, v any) Response {
	body, _ := json.Marshal(v)
	return Response{
		Status: status,
		Headers: map[string]string{
			"content-type":  "application/json",
			"cache-control": "no-store",
		},
		Body: body,
	}
}

func errorResponse(status int, phrase string) Response {
	return jsonResponse(status, map[string]string{"error": phrase})
}

type manifestRequestBody struct {
	Passcode *string `json:"passcode"`
}

func (e *Engine) handleManifest(ctx context.Context, shlID string, body []byte) Response {
	manifestBytes, err := e.cfg.Storage.Read(ctx, shlID+"/manifest.json")
	if errors.Is(err, storage.ErrNotFound) {
		return Response{Status: 404}
	}
	if err != nil {
		logf("engine", "read manifest %s: %v", shlID, err)
		return errorResponse(500, "internal error")
	}

	var reqBody manifestRequestBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &reqBody); err != nil {
			return errorResponse(400, "malformed request body")
		}
	}
	provided := ""
	if reqBody.Passcode != nil {
		provided = *reqBody.Passcode
	}

	now := e.cfg.Now()
	result, err := e.cfg.Storage.UpdateMetadata(ctx, shlID, func(current []byte) storage.UpdateResult {
		var md Metadata
		if err := json.Unmarshal(current, &md); err != nil {
			return storage.Deny("internal")
		}
		reason := evaluateAccess(md, provided, now)
		if reason != "" {
			return storage.Deny(string(reason))
		}
		md.AccessCount++
		next, err := json.Marshal(md)
		if err != nil {
			return storage.Deny("internal")
		}
		return storage.Commit(next)
	})

	if errors.Is(err, storage.ErrNotFound) {
		return Response{Status: 404}
	}
	if err != nil {
		logf("engine", "update metadata %s: %v", shlID, err)
		return errorResponse(500, "internal error")
	}

	if !result.Committed {
		switch DenyReason(result.Reason) {
		case ReasonExpired:
			return errorResponse(410, "SHL has expired")
		case ReasonExhausted:
			return errorResponse(410, "SHL access limit reached")
		case ReasonPasscode:
			return errorResponse(401, "Invalid passcode")
		default:
			return errorResponse(500, "internal error")
		}
	}

	var committed Metadata
	_ = json.Unmarshal(result.Value, &committed)
	e.fireAccessEvent(shlID, committed.AccessCount, now)

	return Response{
		Status: 200,
		Headers: map[string]string{
			"content-type":  "application/json",
			"cache-control": "no-store",
		},
		Body: manifestBytes,
	}
}

func (e *Engine) fireAccessEvent(shlID string, accessCount int, now time.Time) {
	if e.cfg.OnAccess == nil {
		return
	}
	sink := e.cfg.OnAccess
	event := AccessEvent{ShlID: shlID, AccessCount: accessCount, Timestamp: now}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logf("engine", "access event callback panicked: %v", r)
			}
		}()
		sink(event)
	}()
}

func (e *Engine) handleContent(ctx context.Context, shlID string) Response {
	blob, err := e.cfg.Storage.Read(ctx, shlID+"/content.jwe")
	if errors.Is(err, storage.ErrNotFound) {
		return Response{Status: 404}
	}
	if err != nil {
		logf("engine", "read content %s: %v", shlID, err)
		return errorResponse(500, "internal error")
	}
	return Response{
		Status:  200,
		Headers: map[string]string{"content-type": "application/jose"},
		Body:    blob,
	}
}

func (e *Engine) handleAttachment(ctx context.Context, shlID, idx string) Response {
	if !isDigits(idx) {
		return errorResponse(400, "invalid attachment index")
	}
	blob, err := e.cfg.Storage.Read(ctx, fmt.Sprintf("%s/attachment-%s.jwe", shlID, idx))
	if errors.Is(err, storage.ErrNotFound) {
		return Response{Status: 404}
	}
	if err != nil {
		logf("engine", "read attachment %s/%s: %v", shlID, idx, err)
		return errorResponse(500, "internal error")
	}
	return Response{
		Status:  200,
		Headers: map[string]string{"content-type": "application/jose"},
		Body:    blob,
	}
}
