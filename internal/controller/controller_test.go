package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"madebuy/internal/model"
	"madebuy/internal/repository"
	"madebuy/internal/service"
	"madebuy/pkg/etsy"
	"madebuy/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 请求构造辅助 ====================

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode 解出信封，data 原样保留供调用方再解
func decode(t *testing.T, w *httptest.ResponseRecorder) (int, string, json.RawMessage) {
	t.Helper()
	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "响应不是合法 JSON: %s", w.Body.String())
	return env.Code, env.Message, env.Data
}

func setupCtlTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Tenant{},
		&model.MarketplaceConnection{},
		&model.ShippingProfile{},
		&model.Piece{},
	); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// ==================== 模拟 Etsy ====================

type fakeEtsy struct {
	srv     *httptest.Server
	created atomic.Int32
}

func newFakeEtsy(t *testing.T) *fakeEtsy {
	f := &fakeEtsy{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code is invalid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"123.fresh","refresh_token":"123.next","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id":123,"shop_id":99}`))
	})
	mux.HandleFunc("GET /shops/99", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shop_id":99,"user_id":123,"shop_name":"OpalStudio"}`))
	})
	mux.HandleFunc("POST /shops/99/listings", func(w http.ResponseWriter, r *http.Request) {
		id := 1000 + f.created.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"listing_id":%d,"url":"https://www.etsy.com/listing/%d","state":"draft"}`, id, id)
	})
	mux.HandleFunc("PATCH /shops/99/listings/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"listing_id":%s,"state":"active"}`, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /listings/{id}/inventory", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":[]}`))
	})
	mux.HandleFunc("DELETE /listings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /shops/99/listings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"results":[{"listing_id":1001,"title":"Opal Ring","state":"active"}]}`))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// ==================== 完整依赖 ====================

type ctlFixture struct {
	db     *gorm.DB
	fake   *fakeEtsy
	tenant *model.Tenant
	pieces repository.PieceRepository
	conns  repository.ConnectionRepository
	router *gin.Engine
}

func newCtlFixture(t *testing.T) *ctlFixture {
	db := setupCtlTestDB(t)
	fake := newFakeEtsy(t)

	tenants := repository.NewTenantRepository(db)
	conns := repository.NewConnectionRepository(db)
	pieces := repository.NewPieceRepository(db)
	tenant := &model.Tenant{Slug: "opal-studio", BusinessName: "Opal Studio"}
	require.NoError(t, tenants.Create(context.Background(), tenant))

	client := etsy.NewClient(etsy.Config{APIKey: "test-key", BaseURL: fake.srv.URL, RPS: 1000, Burst: 100})
	authSvc := service.NewAuthService(service.AuthConfig{
		RedirectURL: "http://localhost:8080/api/v1/etsy/callback",
		TokenURL:    fake.srv.URL + "/token",
		Timeout:     5 * time.Second,
	}, client, tenants, conns, utils.NewMemoryStateStore(), nil)
	syncSvc := service.NewEtsySyncService(client, authSvc, pieces, service.NewHTTPImageSource(service.StorageConfig{}), nil)
	reconcileSvc := service.NewReconcileService(syncSvc, authSvc, pieces, 2, nil)
	shippingSvc := service.NewShippingProfileService(repository.NewShippingProfileRepository(db), nil)

	authCtl := NewAuthController(authSvc)
	etsyCtl := NewEtsyController(syncSvc, reconcileSvc)
	shipCtl := NewShippingProfileController(shippingSvc)

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/etsy/callback", authCtl.Callback)

	tg := api.Group("/tenants/:tenantId")
	tg.GET("/etsy/connect", authCtl.Connect)
	tg.GET("/etsy/connection", authCtl.GetConnection)
	tg.POST("/etsy/refresh", authCtl.Refresh)
	tg.GET("/etsy/listings", etsyCtl.ListListings)
	tg.POST("/etsy/sync", etsyCtl.SyncBatch)

	pg := tg.Group("/pieces/:pieceId/etsy")
	pg.GET("/status", etsyCtl.GetStatus)
	pg.PUT("/sync-enabled", etsyCtl.SetSyncEnabled)
	pg.POST("/sync", etsyCtl.SyncPiece)
	pg.POST("/inventory", etsyCtl.SyncInventory)
	pg.DELETE("/listing", etsyCtl.DeleteListing)

	sg := tg.Group("/shipping-profiles")
	sg.GET("", shipCtl.ListProfiles)
	sg.POST("", shipCtl.CreateProfile)
	sg.GET("/summary", shipCtl.GetSummary)
	sg.GET("/default", shipCtl.GetDefaultProfile)
	sg.POST("/quote", shipCtl.Quote)
	sg.GET("/:id", shipCtl.GetProfile)
	sg.PATCH("/:id", shipCtl.UpdateProfile)
	sg.DELETE("/:id", shipCtl.DeleteProfile)
	sg.POST("/:id/default", shipCtl.SetDefault)
	sg.PUT("/:id/active", shipCtl.SetActive)
	sg.POST("/:id/zones", shipCtl.AddZone)
	sg.PATCH("/:id/zones/:zoneId", shipCtl.UpdateZone)
	sg.DELETE("/:id/zones/:zoneId", shipCtl.RemoveZone)

	return &ctlFixture{db: db, fake: fake, tenant: tenant, pieces: pieces, conns: conns, router: r}
}

func (f *ctlFixture) path(format string, args ...interface{}) string {
	return "/api/v1/tenants/" + f.tenant.ID + fmt.Sprintf(format, args...)
}

func (f *ctlFixture) connect(t *testing.T) {
	t.Helper()
	_, err := f.conns.Upsert(context.Background(), &model.MarketplaceConnection{
		TenantID:     f.tenant.ID,
		Marketplace:  model.MarketplaceEtsy,
		ShopID:       99,
		AccessToken:  "123.valid",
		RefreshToken: "123.refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
}
