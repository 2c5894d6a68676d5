// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"sentinel-api/internal/api"
	"sentinel-api/internal/borough"
	"sentinel-api/internal/crime"
	"sentinel-api/internal/geoip"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"
	"sentinel-api/internal/middleware"
	"sentinel-api/internal/migrate"
	"sentinel-api/internal/pings"
	"sentinel-api/internal/prediction"
	"sentinel-api/internal/roads"
	"sentinel-api/internal/sector"
	"sentinel-api/internal/store"
	"sentinel-api/internal/tracing"
	"sentinel-api/internal/utils"
	"sentinel-api/internal/version"

	"github.com/joho/godotenv"
)

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok", "commit", version.Commit)
	apiBase := envOr("API_BASE", "/api")
	l.Debug("config_api_base", "base", apiBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.ConfigFromEnv())
	if err != nil {
		l.Error("tracing_init_error", "err", err)
		os.Exit(1)
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing)

	// 行政区边界为必需数据
	boroughsPath := envOr("BOROUGHS_PATH", filepath.Join("data", "lad.json"))
	snap, err := borough.LoadSnapshot(boroughsPath, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		l.Error("borough_load_error", "path", boroughsPath, "err", err)
		os.Exit(1)
	}
	idx := borough.NewIndex(snap, 4096, 10*time.Minute)
	l.Info("borough_load_ok", "count", len(snap.Boroughs))

	crimes := crime.NewDataset(nil)
	if p := os.Getenv("CRIME_CSV_PATH"); p != "" {
		if ds, err := crime.LoadFile(p); err == nil {
			crimes = ds
		} else {
			l.Error("crime_csv_error", "path", p, "err", err)
		}
	}

	deps := api.Deps{
		Boroughs:     idx,
		BoroughsPath: boroughsPath,
		Crimes:       crimes,
		Rand:         sector.NewRandomSource(time.Now().UnixNano()),
		CacheTTL:     time.Duration(envInt("SECTOR_CACHE_TTL_S", 3600)) * time.Second,
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
		AdminAllow:   middleware.AllowlistFromEnv(),
	}

	sim := pings.NewSimulator(borough.London, time.Duration(envInt("PING_TTL_MS", 3000))*time.Millisecond, time.Now().UnixNano())
	defer sim.Stop()
	hub := pings.NewHub()
	go hub.Run(ctx)
	sim.SetPublisher(hub)
	deps.Pings, deps.Hub = sim, hub

	var st *store.Store
	if utils.DBEnabled() {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		l.Info("db_open_ok")
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
			if err := migrate.EnsureSchema(ctx, db); err != nil {
				l.Error("schema_error", "err", err)
				os.Exit(1)
			}
			st = store.AttachDB(db)
		}
	} else {
		l.Info("db_disabled")
	}
	if st != nil {
		sim.SetRecorder(st)
		deps.Stats, deps.CrimeDB, deps.History = st, st, st
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		rc = nil
	} else {
		l.Info("redis_ping_ok")
	}
	deps.Redis = rc

	if u := os.Getenv("PREDICT_URL"); u != "" {
		deps.Predictor = prediction.NewClient(u, time.Duration(envInt("PREDICT_TIMEOUT_MS", 5000))*time.Millisecond)
		l.Info("predict_enabled", "url", u)
	}
	deps.Roads = roads.NewClient(envOr("OVERPASS_URL", roads.DefaultEndpoint), 15*time.Second, 0.00001)

	if p := os.Getenv("GEOIP_DB_PATH"); p != "" {
		if g, err := geoip.Open(p); err == nil {
			defer g.Close()
			deps.GeoIP = g
		} else {
			l.Error("geoip_open_error", "path", p, "err", err)
		}
	}

	// 背景：每周一（Europe/London）刷新犯罪数据集；配置了数据库时同步写库
	if u := os.Getenv("CRIME_REFRESH_URL"); u != "" {
		ref := &crime.Refresher{URL: u, Dataset: crimes}
		if st != nil {
			ref.DB = st.DB()
		}
		if crimes.Len() == 0 {
			go func() {
				if err := ref.Refresh(ctx); err != nil {
					l.Error("crime_initial_refresh_error", "err", err)
				}
			}()
		}
		crime.StartWeekly(ctx, envInt("CRIME_REFRESH_HOUR", 4), ref.Refresh)
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(deps)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	// NOTE: 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'\n"))
	})
	if ui := envOr("UI_DIST", filepath.Join("ui", "dist")); ui != "" {
		if _, err := os.Stat(ui); err == nil {
			mux.Handle("/", http.FileServer(http.Dir(ui)))
			l.Debug("config_ui_dir", "dir", ui)
		}
	}

	addr := envOr("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	tlsEnable := os.Getenv("TLS_ENABLE")
	if tlsEnable == "" || tlsEnable == "true" {
		certPath := envOr("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := envOr("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "sentinel.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
}
