package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"madebuy/internal/model"
	"madebuy/internal/service"
)

func (f *ctlFixture) seedPiece(t *testing.T, name string) *model.Piece {
	t.Helper()
	stock := 2
	piece := &model.Piece{
		TenantID: f.tenant.ID,
		Name:     name,
		Category: "rings",
		Status:   model.PieceStatusAvailable,
		Price:    decimal.NewNullDecimal(decimal.RequireFromString("89.00")),
		Stock:    &stock,
	}
	require.NoError(t, f.pieces.Create(context.Background(), piece))
	return piece
}

func decodeSyncResult(t *testing.T, data json.RawMessage) service.SyncResult {
	t.Helper()
	var res service.SyncResult
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestEtsyCtl_SyncPiece(t *testing.T) {
	f := newCtlFixture(t)
	f.connect(t)
	piece := f.seedPiece(t, "Opal Ring")

	// 1. 首次同步创建 listing
	w := performRequest(f.router, http.MethodPost, f.path("/pieces/%s/etsy/sync", piece.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data := decode(t, w)
	res := decodeSyncResult(t, data)
	assert.True(t, res.Created)
	assert.Equal(t, int64(1001), res.ListingID)

	// 2. 状态已关联
	w = performRequest(f.router, http.MethodGet, f.path("/pieces/%s/etsy/status", piece.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, _, data = decode(t, w)
	var status service.SyncStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.True(t, status.Linked)
	assert.Equal(t, service.SyncStateLinkedSuccess, status.State)

	// 3. 再次同步走更新
	w = performRequest(f.router, http.MethodPost, f.path("/pieces/%s/etsy/sync", piece.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, _, data = decode(t, w)
	assert.False(t, decodeSyncResult(t, data).Created)
	assert.Equal(t, int32(1), f.fake.created.Load())

	// 4. 删除 listing 后解除关联
	w = performRequest(f.router, http.MethodDelete, f.path("/pieces/%s/etsy/listing", piece.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored, err := f.pieces.GetByID(context.Background(), f.tenant.ID, piece.ID)
	require.NoError(t, err)
	assert.False(t, stored.Etsy.Linked())
}

func TestEtsyCtl_SyncFailures(t *testing.T) {
	f := newCtlFixture(t)
	piece := f.seedPiece(t, "Opal Ring")

	// 未授权
	w := performRequest(f.router, http.MethodPost, f.path("/pieces/%s/etsy/sync", piece.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	_, msg, data := decode(t, w)
	assert.Contains(t, msg, "connection not found")
	assert.False(t, decodeSyncResult(t, data).Success)

	f.connect(t)

	// 未关联时推库存
	w = performRequest(f.router, http.MethodPost, f.path("/pieces/%s/etsy/inventory", piece.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = performRequest(f.router, http.MethodGet, f.path("/pieces/missing/etsy/status"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEtsyCtl_SyncBatch(t *testing.T) {
	f := newCtlFixture(t)
	f.connect(t)
	a := f.seedPiece(t, "Opal Ring")
	b := f.seedPiece(t, "Opal Pendant")

	w := performRequest(f.router, http.MethodPost, f.path("/etsy/sync"),
		map[string]interface{}{"piece_ids": []string{a.ID, b.ID, "missing"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data := decode(t, w)

	var report service.SyncReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)

	// 无请求体同步全部
	w = performRequest(f.router, http.MethodPost, f.path("/etsy/sync"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data = decode(t, w)
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 2, report.Updated)
}

func TestEtsyCtl_SyncBatch_NotConnected(t *testing.T) {
	f := newCtlFixture(t)
	w := performRequest(f.router, http.MethodPost, f.path("/etsy/sync"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEtsyCtl_ListListings(t *testing.T) {
	f := newCtlFixture(t)
	f.connect(t)

	w := performRequest(f.router, http.MethodGet, f.path("/etsy/listings?state=active&limit=10"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = performRequest(f.router, http.MethodGet, f.path("/etsy/listings?state=bogus"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.router, http.MethodGet, f.path("/etsy/listings?limit=500"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEtsyCtl_SetSyncEnabled(t *testing.T) {
	f := newCtlFixture(t)
	f.connect(t)
	a := f.seedPiece(t, "Opal Ring")
	f.seedPiece(t, "Opal Pendant")

	w := performRequest(f.router, http.MethodPut, f.path("/pieces/%s/etsy/sync-enabled", a.ID),
		map[string]interface{}{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, _, data := decode(t, w)
	var status service.SyncStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.False(t, status.SyncEnabled)

	// 关闭后批量同步跳过
	w = performRequest(f.router, http.MethodPost, f.path("/etsy/sync"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, _, data = decode(t, w)
	var report service.SyncReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.Total)

	w = performRequest(f.router, http.MethodPut, f.path("/pieces/%s/etsy/sync-enabled", a.ID), map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.router, http.MethodPut, f.path("/pieces/missing/etsy/sync-enabled"),
		map[string]interface{}{"enabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
