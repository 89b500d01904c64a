package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semcraft/internal/config"
	"github.com/leapstack-labs/semcraft/internal/curate"
	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/state"
	"github.com/leapstack-labs/semcraft/internal/testutil"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

const testDraftYAML = `name: Order Events
tables:
    - name: orders
      base_table:
        database: ANALYTICS
        schema: RAW
        table: ORDERS
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.StatePath = ":memory:"
	return cfg
}

func readyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Connection.User = "tester"
	cfg.Connection.Password = "secret"
	cfg.Connection.Role = "SYSADMIN"
	cfg.Connection.Warehouse = "COMPUTE_WH"
	cfg.Connection.Host = "example.snowflakecomputing.com"
	cfg.Connection.Account = "example"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*httptest.Server, *http.Client) {
	t.Helper()

	st := state.NewSQLiteStore()
	require.NoError(t, st.Open(":memory:"))
	require.NoError(t, st.Migrate())
	t.Cleanup(func() { _ = st.Close() })

	srv := NewServer(cfg, st, testutil.NewTestLogger(t), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	return ts, client
}

func getStatus(t *testing.T, client *http.Client, base string) statusPayload {
	t.Helper()
	resp, err := client.Get(base + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st statusPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var out errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Error
}

func TestStatusCreatesFreshSession(t *testing.T) {
	ts, client := newTestServer(t, testConfig(t))

	st := getStatus(t, client, ts.URL)

	assert.NotEmpty(t, st.Session)
	require.Len(t, st.Stages, 6)
	assert.True(t, st.Stages[0].Unlocked)
	for _, stage := range st.Stages[1:] {
		assert.False(t, stage.Unlocked, stage.ID)
	}
	assert.False(t, st.Draft)
	assert.False(t, st.UploadEnabled)
}

func TestSessionStableAcrossRequests(t *testing.T) {
	ts, client := newTestServer(t, testConfig(t))

	first := getStatus(t, client, ts.URL)
	second := getStatus(t, client, ts.URL)

	assert.Equal(t, first.Session, second.Session)
}

func TestSessionCookieUsableOverPlainHTTP(t *testing.T) {
	ts, client := newTestServer(t, testConfig(t))

	resp, err := client.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "status response should set the session cookie")
	assert.False(t, cookie.Secure, "a Secure cookie is never returned to a plain http server")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
}

func TestSessionsIsolatedPerBrowser(t *testing.T) {
	ts, alice := newTestServer(t, readyConfig(t))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	bob := &http.Client{Jar: jar}

	resp := postJSON(t, alice, ts.URL+"/api/settings/check", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	aliceStatus := getStatus(t, alice, ts.URL)
	bobStatus := getStatus(t, bob, ts.URL)

	assert.NotEqual(t, aliceStatus.Session, bobStatus.Session)
	assert.True(t, aliceStatus.Stages[1].Unlocked)
	assert.False(t, bobStatus.Stages[1].Unlocked)
}

func TestSettingsCheckReportsMissing(t *testing.T) {
	ts, client := newTestServer(t, testConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/settings/check", nil)
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "SEMCRAFT_USER")
}

func TestSettingsCheckUnlocksStore(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/settings/check", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := getStatus(t, client, ts.URL)
	assert.True(t, st.Stages[1].Unlocked)
}

func TestSetDestinationRejectsIncomplete(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/destination", destinationPayload{
		Database: "ANALYTICS",
		Schema:   "SEMANTIC",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "stage")
}

func TestSetAndClearDestination(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/destination", destinationPayload{
		Database: "ANALYTICS",
		Schema:   "SEMANTIC",
		Stage:    "MODELS",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := getStatus(t, client, ts.URL)
	assert.Equal(t, "ANALYTICS.SEMANTIC.MODELS", st.Destination)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/destination", nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st = getStatus(t, client, ts.URL)
	assert.Empty(t, st.Destination)
}

func TestIncompleteResubmissionDropsDestination(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/destination", destinationPayload{
		Database: "ANALYTICS",
		Schema:   "SEMANTIC",
		Stage:    "MODELS",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, ts.URL+"/api/destination", destinationPayload{
		Database: "ANALYTICS",
		Stage:    "MODELS",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "schema")

	st := getStatus(t, client, ts.URL)
	assert.Empty(t, st.Destination)
	assert.False(t, st.UploadEnabled)
}

func TestCreateDraftFromTables(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/draft", draftPayload{
		Name: "Order Events",
		Tables: []tableRefPayload{
			{Database: "ANALYTICS", Schema: "RAW", Table: "ORDERS"},
		},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := getStatus(t, client, ts.URL)
	assert.True(t, st.Draft)
	assert.Equal(t, "Order Events", st.DraftName)

	draftResp, err := client.Get(ts.URL + "/api/draft")
	require.NoError(t, err)
	defer draftResp.Body.Close()
	require.Equal(t, http.StatusOK, draftResp.StatusCode)

	raw, err := io.ReadAll(draftResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "name: Order Events")
	assert.Contains(t, string(raw), "table: ORDERS")
}

func TestImportDraftFromYAML(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/draft", draftPayload{YAML: testDraftYAML})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := getStatus(t, client, ts.URL)
	assert.Equal(t, "Order Events", st.DraftName)
}

func TestImportDraftRejectsNameless(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/draft", draftPayload{YAML: "description: no name here\n"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "no name")
}

func TestPostDraftRequiresBody(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/draft", draftPayload{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetDraftMissing(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp, err := client.Get(ts.URL + "/api/draft")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// setupDraft walks a client through settings, destination and draft
// creation so later stages can be exercised.
func setupDraft(t *testing.T, client *http.Client, base string) {
	t.Helper()

	resp := postJSON(t, client, base+"/api/settings/check", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, base+"/api/destination", destinationPayload{
		Database: "ANALYTICS", Schema: "SEMANTIC", Stage: "MODELS",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, base+"/api/draft", draftPayload{YAML: testDraftYAML})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestValidateStashesAndMarks(t *testing.T) {
	var stashed *model.Draft
	stasher := func(_ context.Context, dest workflow.Destination, draft *model.Draft) error {
		assert.Equal(t, "ANALYTICS.SEMANTIC.MODELS", dest.String())
		stashed = draft
		return nil
	}

	ts, client := newTestServer(t, readyConfig(t), WithStasher(stasher))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/validate", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, stashed)
	assert.Equal(t, "Order Events", stashed.Name)

	st := getStatus(t, client, ts.URL)
	assert.True(t, st.Validated)
	assert.True(t, st.UploadEnabled)
}

func TestValidateWithoutDestination(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/draft", draftPayload{YAML: testDraftYAML})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, ts.URL+"/api/validate", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "destination")
}

func TestValidateStashFailure(t *testing.T) {
	stasher := func(context.Context, workflow.Destination, *model.Draft) error {
		return fmt.Errorf("stage unreachable")
	}

	ts, client := newTestServer(t, readyConfig(t), WithStasher(stasher))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/validate", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "stage unreachable")

	st := getStatus(t, client, ts.URL)
	assert.False(t, st.Validated)
}

func TestUploadRequiresValidation(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/upload", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "validated")
}

func TestUploadAfterValidation(t *testing.T) {
	var uploadedFile string
	stasher := func(context.Context, workflow.Destination, *model.Draft) error { return nil }
	uploader := func(_ context.Context, _ workflow.Destination, _ *model.Draft, fileName string) error {
		uploadedFile = fileName
		return nil
	}

	ts, client := newTestServer(t, readyConfig(t), WithStasher(stasher), WithUploader(uploader))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/validate", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, ts.URL+"/api/upload", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "order_events.yaml", out["file"])
	assert.Equal(t, "order_events.yaml", uploadedFile)
}

func TestCurateRefinesDraft(t *testing.T) {
	refiner := func(_ context.Context, draftText string) curate.Result {
		assert.Contains(t, draftText, "Order Events")
		return curate.Result{Revised: "name: Order Events\ndescription: Curated description\n"}
	}

	ts, client := newTestServer(t, readyConfig(t), WithRefiner(refiner))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/curate", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out["draft"], "Curated description")

	draftResp, err := client.Get(ts.URL + "/api/draft")
	require.NoError(t, err)
	defer draftResp.Body.Close()
	raw, err := io.ReadAll(draftResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Curated description")
}

func TestCurateResetsValidation(t *testing.T) {
	stasher := func(context.Context, workflow.Destination, *model.Draft) error { return nil }
	refiner := func(context.Context, string) curate.Result {
		return curate.Result{Revised: "name: Order Events\ndescription: changed\n"}
	}

	ts, client := newTestServer(t, readyConfig(t), WithStasher(stasher), WithRefiner(refiner))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/validate", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, ts.URL+"/api/curate", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := getStatus(t, client, ts.URL)
	assert.False(t, st.Validated)
}

func TestCurateFailureKeepsDraft(t *testing.T) {
	refiner := func(context.Context, string) curate.Result {
		return curate.Result{Err: "Error encountered: completion timed out"}
	}

	ts, client := newTestServer(t, readyConfig(t), WithRefiner(refiner))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/curate", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "completion timed out")

	draftResp, err := client.Get(ts.URL + "/api/draft")
	require.NoError(t, err)
	defer draftResp.Body.Close()
	raw, err := io.ReadAll(draftResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Order Events")
}

func TestCurateWithoutDraft(t *testing.T) {
	ts, client := newTestServer(t, readyConfig(t))

	resp := postJSON(t, client, ts.URL+"/api/curate", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "no draft")
}

func TestCurateRejectsUnparseableRevision(t *testing.T) {
	refiner := func(context.Context, string) curate.Result {
		return curate.Result{Revised: "name: [unbalanced"}
	}

	ts, client := newTestServer(t, readyConfig(t), WithRefiner(refiner))
	setupDraft(t, client, ts.URL)

	resp := postJSON(t, client, ts.URL+"/api/curate", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "unparseable")

	// A failed attempt must release the curation slot.
	resp = postJSON(t, client, ts.URL+"/api/curate", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestIndexServed(t *testing.T) {
	ts, client := newTestServer(t, testConfig(t))

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "semcraft")
}

func TestPingerFanout(t *testing.T) {
	p := newPinger()

	ch1, cancel1 := p.subscribe()
	ch2, cancel2 := p.subscribe()
	defer cancel2()

	p.ping()

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("first listener missed the ping")
	}
	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("second listener missed the ping")
	}

	cancel1()
	p.ping()

	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("remaining listener missed the ping")
	}
}
