package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tg-scriptguard/internal/config"
	"tg-scriptguard/internal/logger"
)

// Server is the process's HTTP listener: webhook, metrics and the debug page
// share one mux.
type Server struct {
	mux      *http.ServeMux
	server   *http.Server
	certFile string
	keyFile  string
}

func NewServer(addr, certFile, keyFile string) *Server {
	mux := http.NewServeMux()
	return &Server{
		mux: mux,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		certFile: certFile,
		keyFile:  keyFile,
	}
}

// HandleMetrics exposes the prometheus registry at path.
func (s *Server) HandleMetrics(path string) {
	if path == "" {
		path = "/metrics"
	}
	s.mux.Handle(path, promhttp.Handler())
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start() error {
	logger.Infof("Starting HTTP server on %s", s.server.Addr)

	var err error
	if s.certFile != "" && s.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", s.certFile, s.keyFile)
		err = s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// secretToken derives the webhook secret from the bot token so restarts keep it stable.
func secretToken(token string) string {
	tail := token
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "scriptguard_webhook_" + strings.NewReplacer(":", "_", "-", "_").Replace(tail)
}

// SetupWebhook registers the webhook with Telegram and returns the update
// stream together with the server that receives it.
func SetupWebhook(ctx context.Context, bot *telego.Bot, cfg *config.Config) (<-chan telego.Update, *Server, error) {
	wh := cfg.Bot.Webhook
	if wh.Endpoint == "" {
		return nil, nil, fmt.Errorf("webhook endpoint is required")
	}
	if (wh.CertFile == "" || wh.KeyFile == "") && !strings.HasPrefix(wh.Endpoint, "https://") {
		return nil, nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}
	if wh.CertFile == "" || wh.KeyFile == "" {
		logger.Warningf("Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	}

	parsed, err := url.Parse(wh.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	path := parsed.Path
	if path == "" {
		path = "/webhook"
		logger.Infof("No path specified in webhook endpoint, using default path: %s", path)
	}

	secret := secretToken(cfg.Bot.Token)
	logger.Infof("Setting webhook to: %s", wh.Endpoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            wh.Endpoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    secret,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set webhook: %w", err)
	}
	logWebhookInfo(ctx, bot)

	listenPort := wh.ListenPort
	if listenPort == "" {
		listenPort = "8443"
	}
	server := NewServer("0.0.0.0:"+listenPort, wh.CertFile, wh.KeyFile)
	if wh.DebugPath != "" {
		server.mux.HandleFunc(wh.DebugPath, debugHandler(ctx, bot, wh.Endpoint))
	}
	if cfg.Metrics.Enabled {
		server.HandleMetrics(cfg.Metrics.Path)
	}

	updates, err := bot.UpdatesViaWebhook(ctx, telego.WebhookHTTPServeMux(server.mux, path, secret))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get updates channel: %w", err)
	}
	return updates, server, nil
}

func logWebhookInfo(ctx context.Context, bot *telego.Bot) {
	info, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
		return
	}
	logger.Infof("Webhook info: URL=%s, HasCustomCert=%v, PendingUpdateCount=%d",
		info.URL, info.HasCustomCertificate, info.PendingUpdateCount)
	if info.LastErrorDate > 0 {
		logger.Infof("Webhook last error: [%d] %s", info.LastErrorDate, info.LastErrorMessage)
	}
}

func debugHandler(ctx context.Context, bot *telego.Bot, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("Debug endpoint accessed: %s %s", r.Method, r.URL.Path)

		var b strings.Builder
		b.WriteString("Bot webhook server is running\n\n")
		if me, err := bot.GetMe(ctx); err == nil {
			fmt.Fprintf(&b, "Bot username: %s\n", me.Username)
		}
		fmt.Fprintf(&b, "Webhook path: %s\n", endpoint)

		info, err := bot.GetWebhookInfo(ctx)
		if err != nil {
			fmt.Fprintf(&b, "\nError getting webhook info: %v\n", err)
		} else {
			b.WriteString("\nWebhook Info:\n")
			fmt.Fprintf(&b, "URL: %s\n", info.URL)
			fmt.Fprintf(&b, "Custom Certificate: %v\n", info.HasCustomCertificate)
			fmt.Fprintf(&b, "Pending Updates: %d\n", info.PendingUpdateCount)
			if info.LastErrorDate > 0 {
				fmt.Fprintf(&b, "Last Error: [%s] %s\n",
					time.Unix(int64(info.LastErrorDate), 0).Format("2006-01-02 15:04:05"), info.LastErrorMessage)
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
	}
}
