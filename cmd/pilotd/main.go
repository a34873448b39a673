// pilotd is the orchestration daemon: it binds the daemon HTTP surface
// and, when enabled, the sidecar HTTP surface, wiring every subsystem
// together for the lifetime of one process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/pilotdev/pilotd/pkg/analytics"
	"github.com/pilotdev/pilotd/pkg/audit"
	"github.com/pilotdev/pilotd/pkg/auth"
	"github.com/pilotdev/pilotd/pkg/cache"
	"github.com/pilotdev/pilotd/pkg/classifier"
	"github.com/pilotdev/pilotd/pkg/config"
	pilotcontext "github.com/pilotdev/pilotd/pkg/context"
	"github.com/pilotdev/pilotd/pkg/daemonapi"
	"github.com/pilotdev/pilotd/pkg/eventbus"
	"github.com/pilotdev/pilotd/pkg/knowledge"
	"github.com/pilotdev/pilotd/pkg/lifecycle"
	"github.com/pilotdev/pilotd/pkg/permission"
	"github.com/pilotdev/pilotd/pkg/providers"
	"github.com/pilotdev/pilotd/pkg/resultstore"
	"github.com/pilotdev/pilotd/pkg/sidecarapi"
	"github.com/pilotdev/pilotd/pkg/statedir"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", ""), "directory holding .env and an optional pilotd.yaml overlay")
	overlayFile := flag.String("overlay", "", "path to a pilotd.yaml settings overlay")
	port := flag.Int("port", 0, "daemon HTTP port; 0 requests OS-assigned ephemeral port")
	flag.Parse()

	cfg, err := config.Load(config.DefaultEnvFile(*configDir), *overlayFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dir, err := statedir.Open(cfg.StateDir)
	if err != nil {
		log.Fatalf("failed to resolve state directory: %v", err)
	}

	startedAt := time.Now()
	lifecycleMgr := lifecycle.NewManager(dir)

	ledger, err := audit.Open(dir.AuditDB())
	if err != nil {
		log.Fatalf("failed to open audit ledger: %v", err)
	}
	defer ledger.Close()

	tokens, err := auth.NewManager(dir.TokensFile(), cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to open token store: %v", err)
	}

	knowledgeStore, err := knowledge.Open(dir.KnowledgeDB("default"))
	if err != nil {
		slog.Warn("knowledge store unavailable, knowledge routes will not be mounted", "error", err)
		knowledgeStore = nil
	}
	if knowledgeStore != nil {
		defer knowledgeStore.Close()
	}

	classifierEngine := buildClassifierEngine(dir)
	crudClassifier := classifier.New(classifier.Config{InferenceTimeout: cfg.InferenceTimeout}, classifierEngine, classifier.NewPool(2, 8))
	decider := permission.New(permission.Policy{
		AutoAllowRead:          cfg.AutoAllowRead,
		RequireCUDConfirmation: cfg.RequireCUDConfirmation,
	})

	responseCache := cache.NewStore(int(cfg.CacheByteBudget), cfg.CacheTTL)
	rewriter := analytics.NewRewriter(cfg.AnalyticsOverrideRules())
	recorder := analytics.NewRecorder()
	router, anyProviderConfigured := buildProviderRouter(context.Background())

	bus := eventbus.New()
	results := resultstore.New(dir.Root())
	// The previous-outputs client talks back to this same daemon's own
	// knowledge routes, which bind after this point; supplying it up
	// front would mean guessing our own port, so the broker runs without
	// previous-outputs lookup unless a separate knowledge service URL is
	// configured.
	var outputsClient pilotcontext.PreviousOutputsClient
	if baseURL := os.Getenv("PILOTD_KNOWLEDGE_URL"); baseURL != "" {
		outputsClient = pilotcontext.NewHTTPKnowledgeClient(baseURL, os.Getenv("PILOTD_KNOWLEDGE_TOKEN"))
	}
	broker := pilotcontext.NewBroker(outputsClient)

	var gateway *daemonapi.Gateway
	if anyProviderConfigured {
		gateway = &daemonapi.Gateway{
			Cache:    responseCache,
			Rewriter: rewriter,
			Router:   router,
			Recorder: recorder,
		}
	} else {
		slog.Warn("no upstream provider credentials configured, /api/llm/complete will not be mounted")
	}

	daemonSrv := &daemonapi.Server{
		StartedAt:  startedAt,
		Classifier: crudClassifier,
		Decider:    decider,
		Ledger:     ledger,
		Tokens:     tokens,
		Knowledge:  knowledgeStore,
		Gateway:    gateway,
	}

	sidecarSrv := &sidecarapi.Server{
		StartedAt: startedAt,
		Bus:       bus,
		Results:   results,
		Broker:    broker,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", portArg(*port)))
	if err != nil {
		log.Fatalf("failed to bind daemon listener: %v", err)
	}
	boundPort := listener.Addr().(*net.TCPAddr).Port
	daemonSrv.Port = boundPort
	if err := lifecycleMgr.UpdatePort(boundPort); err != nil {
		slog.Warn("failed to record daemon port in pid file", "error", err)
	}

	daemonHTTP := &http.Server{Handler: daemonSrv.Router()}
	go func() {
		slog.Info("daemon HTTP surface listening", "port", boundPort)
		if err := daemonHTTP.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("daemon HTTP surface exited", "error", err)
		}
	}()

	var sidecarHTTP *http.Server
	sidecarPort := 0
	if cfg.SidecarEnabled {
		sidecarListener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", portArg(cfg.SidecarPort)))
		if err != nil {
			log.Fatalf("failed to bind sidecar listener: %v", err)
		}
		sidecarPort = sidecarListener.Addr().(*net.TCPAddr).Port
		if err := lifecycleMgr.UpdateGatewayPort(sidecarPort); err != nil {
			slog.Warn("failed to record sidecar port in pid file", "error", err)
		}

		sidecarHTTP = &http.Server{Handler: sidecarSrv.Router()}
		go func() {
			slog.Info("sidecar HTTP surface listening", "port", sidecarPort)
			if err := sidecarHTTP.Serve(sidecarListener); err != nil && err != http.ErrServerClosed {
				slog.Error("sidecar HTTP surface exited", "error", err)
			}
		}()
	}

	sealTempBundle(cfg, boundPort, sidecarPort)
	defer statedir.NewTempBundle().Clean()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight requests")

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = daemonHTTP.Shutdown(drainCtx)
	if sidecarHTTP != nil {
		_ = sidecarHTTP.Shutdown(drainCtx)
	}
}

// sealTempBundle writes the orchestrator-settings and hooks-sealed files
// the host CLI's child (the coding assistant) reads to discover the
// daemon's effective configuration without a round trip to the daemon
// itself (spec.md §6's sealed-temp-file contract). agents-sealed and
// rules-sealed are the host CLI's own roster/rule content, not derived
// from this daemon's config, so they are left for the host CLI to seal;
// only the two files whose content this daemon actually owns are written
// here.
func sealTempBundle(cfg *config.Settings, daemonPort, sidecarPort int) {
	bundle := statedir.NewTempBundle()

	settings := map[string]any{
		"api_url":                  "http://localhost:" + strconv.Itoa(daemonPort),
		"sidecar_url":              "http://localhost:" + strconv.Itoa(sidecarPort),
		"auto_allow_read":          cfg.AutoAllowRead,
		"require_cud_confirmation": cfg.RequireCUDConfirmation,
		"hooks_enabled":            cfg.HooksEnabled,
		"sidecar_enabled":          cfg.SidecarEnabled,
	}
	if err := bundle.WriteJSON(bundle.SettingsPath(), settings); err != nil {
		slog.Warn("failed to seal orchestrator-settings", "error", err)
	}

	hooks := map[string]any{
		"enabled":                  cfg.HooksEnabled,
		"auto_allow_read":          cfg.AutoAllowRead,
		"require_cud_confirmation": cfg.RequireCUDConfirmation,
	}
	if err := bundle.WriteJSON(bundle.HooksPath(), hooks); err != nil {
		slog.Warn("failed to seal hooks config", "error", err)
	}
}

func portArg(p int) string {
	if p <= 0 {
		return "0"
	}
	return strconv.Itoa(p)
}

// buildClassifierEngine prefers a configured local inference binary
// (PILOTD_CLASSIFIER_CMD) and falls back to the pure-Go rubric heuristic
// so the daemon stays usable with no model artifact present (spec.md
// §4.2).
func buildClassifierEngine(dir *statedir.Dir) classifier.Engine {
	cmd := os.Getenv("PILOTD_CLASSIFIER_CMD")
	if cmd == "" {
		return classifier.NewRubricEngine()
	}
	return classifier.NewModelEngine(classifier.ModelConfig{
		Name:         "crud-classifier",
		InferenceCmd: cmd,
	}, dir)
}

// buildProviderRouter wires whichever upstream provider credentials are
// present in the environment; an absent credential leaves that adapter
// nil, and Router.Dispatch reports ErrUpstreamUnavailable for models that
// would have routed to it.
func buildProviderRouter(ctx context.Context) (*providers.Router, bool) {
	configured := false

	var anthropicProvider providers.Provider
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		anthropicProvider = providers.NewAnthropicProvider(key)
		configured = true
	}

	var openaiProvider providers.Provider
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			openaiProvider = providers.NewOpenAICompatibleProvider(key, baseURL)
		} else {
			openaiProvider = providers.NewOpenAIProvider(key)
		}
		configured = true
	}

	var bedrockProvider providers.Provider
	if client := buildBedrockClient(ctx); client != nil {
		bedrockProvider = providers.NewBedrockProvider(client)
		configured = true
	}

	return providers.NewRouter(anthropicProvider, openaiProvider, bedrockProvider), configured
}

// buildBedrockClient only resolves AWS credentials when the deployment
// opts in via AWS_REGION, so a daemon start with no Bedrock usage never
// pays the default credential chain's metadata-endpoint probe.
func buildBedrockClient(ctx context.Context) *bedrockruntime.Client {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		return nil
	}

	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(region))
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
		sessionToken := os.Getenv("AWS_SESSION_TOKEN")
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		slog.Warn("failed to load AWS config, Bedrock provider disabled", "error", err)
		return nil
	}
	return bedrockruntime.NewFromConfig(awsCfg)
}
