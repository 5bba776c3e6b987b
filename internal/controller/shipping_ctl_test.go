package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"madebuy/internal/api/dto"
	"madebuy/internal/model"
)

func createProfile(t *testing.T, f *ctlFixture, body interface{}) model.ShippingProfile {
	t.Helper()
	w := performRequest(f.router, http.MethodPost, f.path("/shipping-profiles"), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, _, data := decode(t, w)

	var p model.ShippingProfile
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func TestShippingCtl_CreateAndGet(t *testing.T) {
	f := newCtlFixture(t)

	p := createProfile(t, f, map[string]interface{}{
		"name":       "Standard",
		"is_default": true,
		"zones": []map[string]interface{}{
			{"name": "Domestic", "countries": []string{"AU"}, "rate": 900},
		},
	})
	assert.NotEmpty(t, p.ID)
	require.Len(t, p.Zones, 1)
	assert.NotEmpty(t, p.Zones[0].ID)

	w := performRequest(f.router, http.MethodGet, f.path("/shipping-profiles/%s", p.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	code, _, _ := decode(t, w)
	assert.Equal(t, 0, code)

	w = performRequest(f.router, http.MethodGet, f.path("/shipping-profiles/default"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShippingCtl_CreateInvalid(t *testing.T) {
	f := newCtlFixture(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "空请求体",
			body:       nil,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "缺少 name",
			body:       map[string]interface{}{"carrier": "manual"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "非法 carrier",
			body:       map[string]interface{}{"name": "X", "carrier": "pigeon"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(f.router, http.MethodPost, f.path("/shipping-profiles"), tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			code, _, _ := decode(t, w)
			assert.Equal(t, tt.wantStatus, code)
		})
	}
}

func TestShippingCtl_NotFound(t *testing.T) {
	f := newCtlFixture(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, f.path("/shipping-profiles/missing")},
		{http.MethodDelete, f.path("/shipping-profiles/missing")},
		{http.MethodPost, f.path("/shipping-profiles/missing/default")},
		{http.MethodGet, f.path("/shipping-profiles/default")},
	} {
		w := performRequest(f.router, req.method, req.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", req.method, req.path)
	}
}

func TestShippingCtl_DeleteDefaultInUse(t *testing.T) {
	f := newCtlFixture(t)

	def := createProfile(t, f, map[string]interface{}{"name": "Default", "is_default": true})
	other := createProfile(t, f, map[string]interface{}{"name": "Express"})

	w := performRequest(f.router, http.MethodDelete, f.path("/shipping-profiles/%s", def.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(f.router, http.MethodDelete, f.path("/shipping-profiles/%s", other.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 只剩默认模板时允许删除
	w = performRequest(f.router, http.MethodDelete, f.path("/shipping-profiles/%s", def.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShippingCtl_Zones(t *testing.T) {
	f := newCtlFixture(t)
	p := createProfile(t, f, map[string]interface{}{"name": "Standard"})

	w := performRequest(f.router, http.MethodPost, f.path("/shipping-profiles/%s/zones", p.ID),
		map[string]interface{}{"name": "NZ", "countries": []string{"NZ"}, "rate": 1500})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, _, data := decode(t, w)
	var withZone model.ShippingProfile
	require.NoError(t, json.Unmarshal(data, &withZone))
	require.Len(t, withZone.Zones, 1)
	zoneID := withZone.Zones[0].ID

	w = performRequest(f.router, http.MethodPatch, f.path("/shipping-profiles/%s/zones/%s", p.ID, zoneID),
		map[string]interface{}{"rate": 1800})
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(f.router, http.MethodPatch, f.path("/shipping-profiles/%s/zones/nope", p.ID),
		map[string]interface{}{"rate": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(f.router, http.MethodDelete, f.path("/shipping-profiles/%s/zones/%s", p.ID, zoneID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShippingCtl_Quote(t *testing.T) {
	f := newCtlFixture(t)
	createProfile(t, f, map[string]interface{}{
		"name":       "Standard",
		"is_default": true,
		"zones": []map[string]interface{}{
			{"name": "Domestic", "countries": []string{"AU"}, "rate": 900},
		},
	})

	w := performRequest(f.router, http.MethodPost, f.path("/shipping-profiles/quote"),
		map[string]interface{}{"country": "AU", "item_count": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data := decode(t, w)
	var quote dto.ShippingQuoteResp
	require.NoError(t, json.Unmarshal(data, &quote))
	assert.Equal(t, int64(900), quote.AmountCents)

	w = performRequest(f.router, http.MethodPost, f.path("/shipping-profiles/quote"),
		map[string]interface{}{"country": "JP", "item_count": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = performRequest(f.router, http.MethodPost, f.path("/shipping-profiles/quote"), map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "country 必填")
}

func TestShippingCtl_ListAndSummary(t *testing.T) {
	f := newCtlFixture(t)
	p := createProfile(t, f, map[string]interface{}{"name": "A", "is_default": true})
	createProfile(t, f, map[string]interface{}{"name": "B"})

	w := performRequest(f.router, http.MethodPut, f.path("/shipping-profiles/%s/active", p.ID),
		map[string]interface{}{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(f.router, http.MethodGet, f.path("/shipping-profiles?active_only=true"), nil)
	_, _, data := decode(t, w)
	var list dto.ShippingProfileListResp
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, int64(1), list.Total)

	w = performRequest(f.router, http.MethodGet, f.path("/shipping-profiles/summary"), nil)
	_, _, data = decode(t, w)
	var summary dto.ShippingProfileSummaryResp
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, int64(1), summary.Active)
	assert.True(t, summary.HasDefault)
}
