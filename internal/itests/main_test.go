//go:build integration

package itests

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"MQueryAPI/internal/cache"
	"MQueryAPI/internal/config"
	"MQueryAPI/internal/db"
	"MQueryAPI/internal/fragments"
	"MQueryAPI/internal/handler"
	"MQueryAPI/internal/qparser"
	"MQueryAPI/internal/router"
	"MQueryAPI/internal/store"
)

var testBaseURL string

func TestMain(m *testing.M) {
	cfg := config.LoadConfig()

	teardownDB, err := SetupAndTeardownTestDB(cfg.PostgresDSN, db.InitPostgres)
	if err != nil {
		println("setup test DB failed:", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = seedDocuments(ctx)
	cancel()
	if err != nil {
		println("seed failed:", err.Error())
		_ = teardownDB()
		os.Exit(1)
	}

	frags := fragments.Set{
		"isActive": map[string]any{"status": "active"},
	}
	h := handler.New(qparser.New(qparser.Options{}), cache.NewQueryCache(0), frags, store.New(db.Pool, nil))
	mux := http.NewServeMux()
	if err := router.InitRoutes(mux, cfg, h); err != nil {
		println("InitRoutes failed:", err.Error())
		_ = teardownDB()
		os.Exit(1)
	}
	srv := httptest.NewServer(mux)
	testBaseURL = srv.URL

	code := m.Run()

	srv.Close()
	db.ClosePostgres()
	if err := teardownDB(); err != nil {
		println("drop test DB failed:", err.Error())
	} else {
		log.Printf("TestMain: test DB dropped")
	}
	os.Exit(code)
}
