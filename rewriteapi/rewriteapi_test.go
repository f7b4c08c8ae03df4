package rewriteapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/proseai/connectivity"
	"github.com/hazyhaar/proseai/dbopen"
	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/rewriteapi"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

type stubRewriter struct {
	mu       sync.Mutex
	calls    []rewrite.Request
	contexts []string
	res      rewrite.Result
}

func (s *stubRewriter) Rewrite(ctx context.Context, req rewrite.Request) rewrite.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	s.contexts = append(s.contexts, kit.GetTransport(ctx))
	return s.res
}

func (s *stubRewriter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newServer(t *testing.T, rw rewriteapi.Rewriter) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(rewriteapi.NewHandler(rewriteapi.HandlerConfig{
		Rewriter: rw,
		Now:      func() time.Time { return fixedNow },
		NewID:    idgen.Sequence("rw_"),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+rewriteapi.Path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestPost_Validation(t *testing.T) {
	rw := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "x", Provider: "gemini"}}
	srv := newServer(t, rw)

	cases := []struct {
		name, body, want string
	}{
		{"missing text", `{"tone":"casual"}`, "Please enter some text to rewrite"},
		{"text not string", `{"text":42,"tone":"casual"}`, "Please enter some text to rewrite"},
		{"whitespace", `{"text":"   ","tone":"casual"}`, "Text is too short to rewrite"},
		{"too long", `{"text":"` + strings.Repeat("a", 5001) + `","tone":"casual"}`, "Text is too long (max 5000 characters)"},
		{"cyrillic", `{"text":"Привет мир","tone":"casual"}`, "Text must be in English"},
		{"bad tone", `{"text":"hello","tone":"angry"}`, "Invalid tone selected"},
		{"no tone", `{"text":"hello"}`, "Invalid tone selected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := post(t, srv.URL, tc.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if out["success"] != false || out["error"] != tc.want {
				t.Errorf("body = %v", out)
			}
			if out["timestamp"] != float64(fixedNow.UnixMilli()) {
				t.Errorf("timestamp = %v", out["timestamp"])
			}
		})
	}
	if n := rw.count(); n != 0 {
		t.Errorf("rewriter called %d times for invalid input", n)
	}
}

func TestPost_Success(t *testing.T) {
	rw := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "Good day to you.", Provider: "claude"}}
	srv := newServer(t, rw)

	status, out := post(t, srv.URL, `{"text":"  hi  ","tone":"polite","provider":"claude"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if out["success"] != true || out["rewrittenText"] != "Good day to you." || out["provider"] != "claude" {
		t.Errorf("body = %v", out)
	}
	got := rw.calls[0]
	if got.Text != "hi" || got.Tone != "polite" || got.Provider != "claude" || got.RequestID != "rw_1" {
		t.Errorf("forwarded request = %+v", got)
	}
	if rw.contexts[0] != "http" {
		t.Errorf("transport = %q", rw.contexts[0])
	}
}

func TestPost_KeepsInboundRequestID(t *testing.T) {
	rw := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "Hi.", Provider: "gemini"}}
	srv := newServer(t, rw)

	req, err := http.NewRequest(http.MethodPost, srv.URL+rewriteapi.Path, strings.NewReader(`{"text":"hi","tone":"polite"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "rw_from_pilot")
	req.Header.Set("X-Trace-ID", "trc_from_pilot")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := rw.calls[0].RequestID; got != "rw_from_pilot" {
		t.Errorf("request id = %q", got)
	}
	if got := resp.Header.Get("X-Trace-ID"); got != "trc_from_pilot" {
		t.Errorf("X-Trace-ID = %q", got)
	}
}

func TestHead_Health(t *testing.T) {
	srv := newServer(t, &stubRewriter{})
	resp, err := srv.Client().Head(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.ContentLength <= 0 {
		t.Errorf("HEAD /health: status=%d length=%d", resp.StatusCode, resp.ContentLength)
	}
}

func TestPost_ProviderFailure(t *testing.T) {
	cases := []struct {
		res  rewrite.Result
		want string
	}{
		{rewrite.Result{Error: "Gemini API failed: quota", Provider: "gemini"}, "Gemini API failed: quota"},
		{rewrite.Result{Provider: "openai"}, rewriteapi.MsgAPIError},
	}
	for _, tc := range cases {
		srv := newServer(t, &stubRewriter{res: tc.res})
		status, out := post(t, srv.URL, `{"text":"hello","tone":"casual"}`)
		if status != http.StatusInternalServerError {
			t.Errorf("status = %d", status)
		}
		if out["error"] != tc.want || out["provider"] != tc.res.Provider {
			t.Errorf("body = %v", out)
		}
	}
}

func TestPost_BadJSON(t *testing.T) {
	srv := newServer(t, &stubRewriter{})
	status, out := post(t, srv.URL, `{not json`)
	if status != http.StatusInternalServerError || out["error"] != "An unexpected error occurred" {
		t.Errorf("status=%d body=%v", status, out)
	}
}

func TestGet_Info(t *testing.T) {
	srv := newServer(t, &stubRewriter{})
	resp, err := http.Get(srv.URL + rewriteapi.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var info rewriteapi.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Name != "ProseAI Rewrite API" || info.Version != "1.0.0" || info.MaxTextLength != 5000 {
		t.Errorf("info = %+v", info)
	}
	if len(info.AvailableTones) != 6 || len(info.SupportedProviders) != 3 {
		t.Errorf("tones=%v providers=%v", info.AvailableTones, info.SupportedProviders)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}
}

func TestOptions_Preflight(t *testing.T) {
	srv := newServer(t, &stubRewriter{})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+rewriteapi.Path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("methods = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("headers = %q", got)
	}
}

func TestCheckHealth(t *testing.T) {
	srv := newServer(t, &stubRewriter{})
	ctx := context.Background()
	if !rewriteapi.CheckHealth(ctx, srv.Client(), srv.URL+"/") {
		t.Error("healthy server reported down")
	}
	if rewriteapi.CheckHealth(ctx, srv.Client(), "http://127.0.0.1:1") {
		t.Error("closed port reported up")
	}
}

func TestClient_LocalRoute(t *testing.T) {
	rw := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "Howdy!", Provider: "openai"}}
	router := connectivity.New()
	router.RegisterLocal(rewriteapi.ServiceName, rewriteapi.LocalHandler(rw))

	cl := rewriteapi.NewClient(router, nil)
	ctx := kit.WithTransport(context.Background(), "pilot")
	res := cl.Rewrite(ctx, rewrite.Request{Text: "hello", Tone: "casual", RequestID: "rw_local"})
	if !res.Success || res.RewrittenText != "Howdy!" || res.Provider != "openai" {
		t.Fatalf("res = %+v", res)
	}
	if rw.calls[0].RequestID != "rw_local" || rw.contexts[0] != "pilot" {
		t.Errorf("forwarded = %+v transport=%q", rw.calls[0], rw.contexts[0])
	}

	res = cl.Rewrite(ctx, rewrite.Request{Text: "", Tone: "casual"})
	if res.Success || res.Error != "Please enter some text to rewrite" {
		t.Errorf("empty text res = %+v", res)
	}
}

func TestClient_HTTPRoute(t *testing.T) {
	remote := &stubRewriter{res: rewrite.Result{Error: "OpenAI API failed: bad key", Provider: "openai"}}
	srv := newServer(t, remote)

	db := dbopen.OpenMemory(t, dbopen.WithSchema(connectivity.Schema))
	ctx := context.Background()
	if err := connectivity.NewAdmin(db).UpsertRoute(ctx, rewriteapi.ServiceName, connectivity.StrategyHTTP,
		srv.URL, json.RawMessage(`{"path":"/api/rewrite"}`)); err != nil {
		t.Fatal(err)
	}

	local := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "local"}}
	router := connectivity.New()
	router.RegisterLocal(rewriteapi.ServiceName, rewriteapi.LocalHandler(local))
	router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory(connectivity.HTTPOptions{AllowLoopback: true}))
	if err := router.Reload(ctx, db); err != nil {
		t.Fatal(err)
	}
	defer router.Close()

	res := rewriteapi.NewClient(router, nil).Rewrite(ctx, rewrite.Request{Text: "hello", Tone: "casual"})
	if res.Success || res.Error != "OpenAI API failed: bad key" || res.Provider != "openai" {
		t.Errorf("res = %+v", res)
	}
	if local.count() != 0 || remote.count() != 1 {
		t.Errorf("local=%d remote=%d", local.count(), remote.count())
	}
}

func TestClient_Unreachable(t *testing.T) {
	res := rewriteapi.NewClient(connectivity.New(), nil).Rewrite(context.Background(), rewrite.Request{Text: "hi", Tone: "casual"})
	if res.Success || res.Error != rewriteapi.MsgClientFailed || res.Provider != rewrite.ProviderNone {
		t.Errorf("res = %+v", res)
	}
}

func TestClient_FailuresReportNoProvider(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"plain text gateway error", http.StatusBadGateway, "upstream down", rewriteapi.MsgClientFailed},
		{"failure without provider", http.StatusInternalServerError, `{"success":false}`, rewriteapi.MsgRequestFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			db := dbopen.OpenMemory(t, dbopen.WithSchema(connectivity.Schema))
			ctx := context.Background()
			router := connectivity.New()
			router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory(connectivity.HTTPOptions{AllowLoopback: true}))
			if err := rewriteapi.SetRoute(ctx, db, router, srv.URL); err != nil {
				t.Fatal(err)
			}
			defer router.Close()

			res := rewriteapi.NewClient(router, nil).Rewrite(ctx, rewrite.Request{Text: "hello", Tone: "casual"})
			if res.Success || res.Error != tc.want || res.Provider != rewrite.ProviderNone {
				t.Errorf("res = %+v", res)
			}
		})
	}
}

var testMCPImpl = &mcp.Implementation{Name: "proseai-test", Version: "0.1.0"}

func mcpSession(t *testing.T, rw rewriteapi.Rewriter) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	rewriteapi.RegisterMCP(srv, rw, rewriteapi.WithClock(func() time.Time { return fixedNow }))

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %s", name, tc.Text)
	}
	return tc.Text
}

func TestMCP_RewriteText(t *testing.T) {
	rw := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "Kind regards.", Provider: "gemini"}}
	session := mcpSession(t, rw)

	text := mcpCallTool(t, session, "rewrite_text", map[string]any{"text": "bye", "tone": "professional"})
	var resp rewriteapi.Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.RewrittenText != "Kind regards." || resp.Timestamp != fixedNow.UnixMilli() {
		t.Errorf("resp = %+v", resp)
	}
	if rw.contexts[0] != "mcp" {
		t.Errorf("transport = %q", rw.contexts[0])
	}
}

func TestMCP_RewriteFailureIsToolError(t *testing.T) {
	rw := &stubRewriter{res: rewrite.Result{Error: "Gemini API failed: quota", Provider: "gemini"}}
	session := mcpSession(t, rw)

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"provider failure", map[string]any{"text": "bye", "tone": "professional"}, "Gemini API failed: quota"},
		{"validation", map[string]any{"text": "bye", "tone": "angry"}, "Invalid tone selected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "rewrite_text", Arguments: tc.args})
			if err != nil {
				t.Fatal(err)
			}
			if !result.IsError {
				t.Fatal("failed rewrite not flagged as a tool error")
			}
			var resp rewriteapi.Response
			if err := json.Unmarshal([]byte(result.Content[0].(*mcp.TextContent).Text), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error != tc.want {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
	if rw.count() != 1 {
		t.Errorf("provider calls = %d, want 1", rw.count())
	}
}

func TestMCP_BadArgumentsNeverReachRewriter(t *testing.T) {
	rw := &stubRewriter{}
	session := mcpSession(t, rw)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "rewrite_text",
		Arguments: map[string]any{"text": "bye", "tone": 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || rw.count() != 0 {
		t.Errorf("IsError=%v calls=%d", result.IsError, rw.count())
	}
}

func TestMCP_ListTones(t *testing.T) {
	session := mcpSession(t, &stubRewriter{})
	text := mcpCallTool(t, session, "list_tones", map[string]any{})
	var resp struct {
		Tones []rewrite.Tone `json:"tones"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tones) != 6 || resp.Tones[3].ID != "comedy" || resp.Tones[3].Icon != "😂" {
		t.Errorf("tones = %+v", resp.Tones)
	}
}

func TestSetRoute(t *testing.T) {
	remote := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "remote", Provider: "claude"}}
	srv := newServer(t, remote)
	local := &stubRewriter{res: rewrite.Result{Success: true, RewrittenText: "local", Provider: "gemini"}}

	db := dbopen.OpenMemory(t, dbopen.WithSchema(connectivity.Schema))
	router := connectivity.New()
	router.RegisterLocal(rewriteapi.ServiceName, rewriteapi.LocalHandler(local))
	router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory(connectivity.HTTPOptions{AllowLoopback: true}))
	defer router.Close()
	cl := rewriteapi.NewClient(router, nil)
	ctx := context.Background()

	if err := rewriteapi.SetRoute(ctx, db, router, srv.URL+"/"); err != nil {
		t.Fatal(err)
	}
	if got := router.Strategy(rewriteapi.ServiceName); got != connectivity.StrategyHTTP {
		t.Errorf("strategy = %q", got)
	}
	if res := cl.Rewrite(ctx, rewrite.Request{Text: "hi there", Tone: "casual"}); res.RewrittenText != "remote" {
		t.Errorf("http route: %+v", res)
	}

	if err := rewriteapi.SetRoute(ctx, db, router, ""); err != nil {
		t.Fatal(err)
	}
	if res := cl.Rewrite(ctx, rewrite.Request{Text: "hi there", Tone: "casual"}); res.RewrittenText != "local" {
		t.Errorf("local route: %+v", res)
	}
	if local.count() != 1 || remote.count() != 1 {
		t.Errorf("local=%d remote=%d", local.count(), remote.count())
	}
}
