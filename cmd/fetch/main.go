package main

import (
    "context"
    "encoding/json"
    "errors"
    "flag"
    "fmt"
    "os"
    "strconv"
    "time"

    "geprices/internal/config"
    "geprices/internal/feed"
    "geprices/internal/httpx"
    "geprices/internal/latest"
    "geprices/internal/logging"
    "geprices/internal/prices"
)

// fetch performs a single poll through the same dispatch path the server uses
// and prints the requested rows.
func main() {
    var idsCSV string
    var endpoint string
    var userAgent string
    var timeout int
    var configPath string
    var limit int

    flag.StringVar(&idsCSV, "ids", getenv("IDS", ""), "comma-separated item ids (empty = all)")
    flag.StringVar(&endpoint, "endpoint", getenv("FEED_ENDPOINT", ""), "snapshot URL override")
    flag.StringVar(&userAgent, "user-agent", getenv("FEED_USER_AGENT", ""), "User-Agent override")
    flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (0 = config)")
    flag.IntVar(&limit, "limit", 10, "max rows to print")
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
    flag.Parse()

    // Flags may fill in what the file and env leave out, so only read and
    // parse failures are fatal before they are applied.
    cfg, err := config.Load(configPath)
    log := logging.New(cfg.Log)
    if err != nil && !errors.Is(err, config.ErrInvalid) { log.Fatal().Err(err).Msg("config") }
    if endpoint != "" { cfg.Feed.Endpoint = endpoint }
    if userAgent != "" { cfg.Feed.UserAgent = userAgent }
    if timeout > 0 { cfg.Server.RequestTimeoutSec = timeout }
    if err := cfg.Validate(); err != nil { log.Fatal().Err(err).Msg("config") }

    var ids []int
    for _, s := range config.SplitCSV(idsCSV) {
        id, err := strconv.Atoi(s)
        if err != nil { log.Fatal().Str("id", s).Msg("invalid item id") }
        ids = append(ids, id)
    }

    reqTimeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
    client, err := prices.NewClient(
        cfg.Feed.UserAgent,
        prices.WithHTTPClient(httpx.New(reqTimeout)),
        prices.WithEndpoint(cfg.Feed.Endpoint),
        prices.WithMaxBodyBytes(cfg.Feed.MaxBodyBytes),
    )
    if err != nil { log.Fatal().Err(err).Msg("prices client") }

    job := feed.NewJob(client, feed.WithRequestTimeout(reqTimeout), feed.WithLogger(log))
    store := &latest.Store{}
    job.Subscribe(store.Update)

    outcome := job.RunOnce(context.Background())
    if outcome != feed.OutcomeDelivered {
        log.Error().Str("outcome", outcome.String()).Msg("no snapshot received")
        os.Exit(1)
    }

    rows := store.Rows(ids)
    snap, at, _ := store.Get()
    log.Info().Int("items", snap.Len()).Time("completed_at", at).Msg("snapshot received")

    n := len(rows)
    if limit > 0 && n > limit { n = limit }
    sample := struct{ Latest []latest.Row `json:"latest"` }{Latest: rows[:n]}
    b, _ := json.MarshalIndent(sample, "", "  ")
    fmt.Println(string(b))
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
