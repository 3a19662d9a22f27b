package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/brojonat/solpay/service/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPage(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHomePage_AdminLink(t *testing.T) {
	tests := []struct {
		name      string
		connectAs string
		wantLink  bool
	}{
		{name: "disconnected", connectAs: "", wantLink: false},
		{name: "regular wallet", connectAs: "payer", wantLink: false},
		{name: "admin wallet", connectAs: "admin", wantLink: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.connectAs)
			rec := getPage(t, env.handler, "/")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantLink, strings.Contains(rec.Body.String(), `id="admin-link"`))
		})
	}
}

func TestPaymentPage_Submit(t *testing.T) {
	env := newTestEnv(t, "payer")

	rec := postForm(t, env.handler, "/payment", url.Values{
		"recipient": {randomAddress(t)},
		"amount":    {"1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Payment successful!")
	assert.Contains(t, body, "0.9500 SOL")
	assert.Contains(t, body, "0.0500 SOL")
	assert.Contains(t, body, "cluster=devnet")
}

func TestPaymentPage_InvalidKeepsInput(t *testing.T) {
	env := newTestEnv(t, "payer")

	rec := postForm(t, env.handler, "/payment", url.Values{
		"recipient": {"not-a-key"},
		"amount":    {"1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, payment.MsgInvalidAddress)
	assert.Contains(t, body, `value="not-a-key"`)
	assert.Equal(t, 0, env.sender.sent)
}

func TestPaymentRequestPage_Submit(t *testing.T) {
	env := newTestEnv(t, "payer")

	rec := postForm(t, env.handler, "/payment-request", url.Values{
		"target": {randomAddress(t)},
		"amount": {"0.25"},
		"note":   {"lunch"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Payment request sent successfully!")
	assert.Contains(t, body, "data:image/png;base64,")
}

func TestAdminPage_LoadMore(t *testing.T) {
	env := newTestEnv(t, "admin")

	rec := getPage(t, env.handler, "/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Total commission: 0.0210 SOL")
	assert.Contains(t, body, "sigA")
	assert.Contains(t, body, "sigD")
	assert.NotContains(t, body, "sigE")
	assert.Contains(t, body, `id="load-more"`)
	assert.Contains(t, body, "offset=4")
	assert.Contains(t, body, "snapshot=snap-1")

	more := getPage(t, env.handler, "/admin?offset=4&snapshot=snap-1")
	require.Equal(t, http.StatusOK, more.Code)
	assert.Contains(t, more.Body.String(), "sigF")
	assert.NotContains(t, more.Body.String(), `id="load-more"`)
	assert.Equal(t, 1, env.loader.loads)
}

func TestAdminPage_FilterNoMatches(t *testing.T) {
	env := newTestEnv(t, "admin")

	rec := getPage(t, env.handler, "/admin?signature=zzz")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "No commission transactions.")
	assert.Contains(t, body, "Total commission: 0.0210 SOL")
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t, "https://explorer.solana.com/tx/abc?cluster=devnet", explorerURL("devnet", "abc"))
	assert.Equal(t, "https://explorer.solana.com/tx/abc", explorerURL("mainnet", "abc"))
}
