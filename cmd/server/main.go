package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "sync"
    "syscall"
    "time"

    "github.com/rs/zerolog"

    "geprices/internal/config"
    "geprices/internal/feed"
    "geprices/internal/httpx"
    "geprices/internal/latest"
    "geprices/internal/logging"
    "geprices/internal/prices"
    "geprices/internal/ratelimit"
    "geprices/internal/stream"
)

type latestResponse struct {
    CompletedAt time.Time    `json:"completed_at"`
    Latest      []latest.Row `json:"latest"`
}

func main() {
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    log := logging.New(cfg.Log)
    if err != nil { log.Fatal().Err(err).Msg("config") }

    timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
    httpClient := httpx.New(timeout)

    client, err := prices.NewClient(
        cfg.Feed.UserAgent,
        prices.WithHTTPClient(httpClient),
        prices.WithEndpoint(cfg.Feed.Endpoint),
        prices.WithMaxBodyBytes(cfg.Feed.MaxBodyBytes),
    )
    if err != nil { log.Fatal().Err(err).Msg("prices client") }

    job := feed.NewJob(client,
        feed.WithInitialDelay(cfg.Feed.InitialDelayDuration()),
        feed.WithPeriod(cfg.Feed.PeriodDuration()),
        feed.WithRequestTimeout(timeout),
        feed.WithGate(ratelimit.NewGate(cfg.Feed.MaxRequestsPerMinute, cfg.Feed.Burst)),
        feed.WithLogger(log),
    )

    store := &latest.Store{}
    hub := stream.NewHub(log)
    job.Subscribe(store.Update)
    job.Subscribe(hub.Publish)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    if err := job.Start(ctx); err != nil { log.Fatal().Err(err).Msg("feed start") }

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           newRouter(job, store, hub, log),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Info().Str("addr", srv.Addr).Str("endpoint", client.Endpoint()).Msg("server listening")
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("server")
        }
    }()

    // graceful shutdown
    <-ctx.Done()
    job.Stop()
    hub.Close()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

// newRouter keeps /ws outside the gzip and JSON middleware, which would break
// the websocket hijack.
func newRouter(job *feed.Job, store *latest.Store, hub *stream.Hub, log zerolog.Logger) http.Handler {
    api := http.NewServeMux()
    api.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    api.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        ids, err := parseIDs(r.URL.Query().Get("ids"))
        if err != nil {
            http.Error(w, err.Error(), http.StatusBadRequest)
            return
        }
        writeLatest(w, store, ids)
    })
    api.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, http.StatusOK, job.Stats())
    })
    api.HandleFunc("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        outcome := job.RunOnce(r.Context())
        log.Info().Str("outcome", outcome.String()).Msg("manual refresh")
        writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
    })

    root := http.NewServeMux()
    root.Handle("/ws", hub)
    root.Handle("/", withJSONHeaders(withGzip(recoverPanic(log, api))))
    return root
}

func writeLatest(w http.ResponseWriter, store *latest.Store, ids []int) {
    _, at, ok := store.Get()
    if !ok {
        http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
        return
    }
    writeJSON(w, http.StatusOK, latestResponse{CompletedAt: at, Latest: store.Rows(ids)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func parseIDs(s string) ([]int, error) {
    parts := config.SplitCSV(s)
    if len(parts) > 1000 {
        return nil, errTooManyIDs
    }
    ids := make([]int, 0, len(parts))
    for _, p := range parts {
        id, err := strconv.Atoi(p)
        if err != nil {
            return nil, errInvalidID(p)
        }
        ids = append(ids, id)
    }
    return ids, nil
}

type errInvalidID string

func (e errInvalidID) Error() string { return "invalid item id: " + strconv.Quote(string(e)) }

var errTooManyIDs = errors.New("too many ids (max 1000)")

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(log zerolog.Logger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
                http.Error(w, "internal server error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}
