package controller

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"madebuy/internal/api/dto"
	"madebuy/internal/model"
)

func connectURL(t *testing.T, f *ctlFixture) url.Values {
	t.Helper()
	w := performRequest(f.router, http.MethodGet, f.path("/etsy/connect"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data := decode(t, w)

	var resp dto.EtsyConnectResp
	require.NoError(t, json.Unmarshal(data, &resp))
	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	return u.Query()
}

func TestAuthCtl_ConnectAndCallback(t *testing.T) {
	f := newCtlFixture(t)

	q := connectURL(t, f)
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	state := q.Get("state")
	require.NotEmpty(t, state)

	w := performRequest(f.router, http.MethodGet, "/api/v1/etsy/callback?code=good-code&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data := decode(t, w)

	var conn dto.EtsyConnectionResp
	require.NoError(t, json.Unmarshal(data, &conn))
	assert.Equal(t, f.tenant.ID, conn.TenantID)
	assert.Equal(t, int64(99), conn.ShopID)
	assert.Equal(t, "OpalStudio", conn.ShopName)
	assert.NotContains(t, w.Body.String(), "123.fresh", "响应不能泄露 token")

	// state 只能使用一次
	w = performRequest(f.router, http.MethodGet, "/api/v1/etsy/callback?code=good-code&state="+url.QueryEscape(state), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.router, http.MethodGet, f.path("/etsy/connection"), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthCtl_Callback_Rejected(t *testing.T) {
	f := newCtlFixture(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"用户拒绝", "?error=access_denied&error_description=User+denied", http.StatusBadRequest},
		{"缺少 code", "?state=abc", http.StatusBadRequest},
		{"未知 state", "?code=good-code&state=unknown", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(f.router, http.MethodGet, "/api/v1/etsy/callback"+tt.query, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestAuthCtl_Callback_BadCode(t *testing.T) {
	f := newCtlFixture(t)
	state := connectURL(t, f).Get("state")

	w := performRequest(f.router, http.MethodGet, "/api/v1/etsy/callback?code=bad-code&state="+url.QueryEscape(state), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	_, msg, _ := decode(t, w)
	assert.Contains(t, msg, "code is invalid")
}

func TestAuthCtl_Connect_UnknownTenant(t *testing.T) {
	f := newCtlFixture(t)
	w := performRequest(f.router, http.MethodGet, "/api/v1/tenants/nope/etsy/connect", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthCtl_Refresh(t *testing.T) {
	f := newCtlFixture(t)

	w := performRequest(f.router, http.MethodPost, f.path("/etsy/refresh"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.connect(t)
	w = performRequest(f.router, http.MethodPost, f.path("/etsy/refresh"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	conn, err := f.conns.Get(t.Context(), f.tenant.ID, model.MarketplaceEtsy)
	require.NoError(t, err)
	assert.Equal(t, "123.fresh", conn.AccessToken)
}
