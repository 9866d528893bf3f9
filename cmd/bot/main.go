package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"service-desk-bot/handler"
	"service-desk-bot/internal/bot"
	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/dialogs"
	"service-desk-bot/internal/integrations/directory"
	"service-desk-bot/internal/integrations/httpclient"
	"service-desk-bot/internal/integrations/oauth"
	"service-desk-bot/internal/integrations/paramstore"
	"service-desk-bot/internal/integrations/qnamaker"
	"service-desk-bot/internal/integrations/sms"
	"service-desk-bot/internal/integrations/ticketapi"
	"service-desk-bot/internal/recognizer"
	"service-desk-bot/internal/repository"
	"service-desk-bot/internal/responder"
	"service-desk-bot/internal/supportkb"
	"service-desk-bot/internal/telemetry"
	"service-desk-bot/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	luisEndpoint := mustEnv("LUIS_ENDPOINT")
	luisStaging := envBool("LUIS_STAGING", false)
	qnaHost := mustEnv("QNA_HOST")
	ticketURL := mustEnv("TICKET_SERVICE_URL")
	httpTimeout := time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second
	dirCfg := directory.Config{
		TenantID:   mustEnv("DIRECTORY_TENANT_ID"),
		ClientID:   mustEnv("DIRECTORY_CLIENT_ID"),
		LoginURL:   os.Getenv("DIRECTORY_LOGIN_URL"),
		GraphURL:   os.Getenv("DIRECTORY_GRAPH_URL"),
		APIVersion: os.Getenv("DIRECTORY_API_VERSION"),
	}
	tokenCfg := oauth.TokenServiceConfig{
		BaseURL:        os.Getenv("TOKEN_SERVICE_URL"),
		ConnectionName: mustEnv("OAUTH_CONNECTION_NAME"),
		AppID:          mustEnv("BOT_APP_ID"),
	}
	luisApps := map[recognizer.App]string{
		recognizer.AppDispatch:          mustEnv("LUIS_DISPATCH_APP_ID"),
		recognizer.AppAccountPassword:   mustEnv("LUIS_ACCOUNT_PASSWORD_APP_ID"),
		recognizer.AppSupportTicket:     mustEnv("LUIS_SUPPORT_TICKET_APP_ID"),
		recognizer.AppSupportKBDispatch: mustEnv("LUIS_SUPPORT_KB_DISPATCH_APP_ID"),
	}
	faqKB := mustEnv("QNA_ACCOUNT_PASSWORD_KB_ID")
	kbIDs := map[string]string{
		supportkb.IntentPCAndLaptopIssues: mustEnv("QNA_PC_AND_LAPTOP_KB_ID"),
		supportkb.IntentPrinterIssues:     mustEnv("QNA_PRINTER_KB_ID"),
	}

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	secrets, err := paramstore.NewSecrets(ssmClient, paramPrefix)
	if err != nil {
		fatal("failed to create secrets resolver", err)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		fatal("failed to create state client", err)
	}
	hc := httpclient.NewKeepAlive(httpTimeout)

	recognizers := make(map[recognizer.App]recognizer.Recognizer, len(luisApps))
	for app, appID := range luisApps {
		r, err := recognizer.NewClient(hc, recognizer.AppConfig{
			AppID:             appID,
			Endpoint:          luisEndpoint,
			Staging:           luisStaging,
			IncludeAllIntents: true,
			Verbose:           true,
		}, secrets.Func("luis"))
		if err != nil {
			fatal("failed to create LUIS client", err, "app", app.String())
		}
		recognizers[app] = r
	}
	registry, err := recognizer.NewRegistry(recognizers)
	if err != nil {
		fatal("failed to create recognizer registry", err)
	}

	faq, err := qnamaker.NewClient(hc, qnamaker.KnowledgeBase{ID: faqKB, Host: qnaHost}, secrets.Func("qna"))
	if err != nil {
		fatal("failed to create FAQ client", err)
	}
	kbs := make(map[string]supportkb.AnswerSource, len(kbIDs))
	for intent, id := range kbIDs {
		kb, err := qnamaker.NewClient(hc, qnamaker.KnowledgeBase{ID: id, Host: qnaHost}, secrets.Func("qna"))
		if err != nil {
			fatal("failed to create knowledge base client", err, "intent", intent)
		}
		kbs[intent] = kb
	}
	kbSearch, err := supportkb.New(registry.Get(recognizer.AppSupportKBDispatch), kbs, logger)
	if err != nil {
		fatal("failed to create support knowledge base search", err)
	}

	dir, err := directory.NewClient(hc, dirCfg, secrets.Func("directory"))
	if err != nil {
		fatal("failed to create directory client", err)
	}
	sender, err := sms.New(awssns.NewFromConfig(cfg), os.Getenv("SMS_SENDER_ID"))
	if err != nil {
		fatal("failed to create SMS sender", err)
	}
	tickets, err := ticketapi.NewClient(hc, ticketURL, secrets.Func("ticket-service"))
	if err != nil {
		fatal("failed to create ticket client", err)
	}
	tokens, err := oauth.NewTokenService(hc, tokenCfg, secrets.Func("bot"))
	if err != nil {
		fatal("failed to create token service client", err)
	}
	graph, err := oauth.NewGraph(hc, os.Getenv("GRAPH_URL"))
	if err != nil {
		fatal("failed to create graph client", err)
	}

	// ---- Bot ----
	catalog, err := responder.Default()
	if err != nil {
		fatal("failed to load responses", err)
	}
	tracker := telemetry.NewLogTracker(logger)

	set, err := dialogs.NewSet(dialogs.Deps{
		Catalog:     catalog,
		Telemetry:   tracker,
		Recognizers: registry,
		FAQ:         faq,
		Directory:   dir,
		SMS:         sender,
		KB:          kbSearch,
		Tickets:     tickets,
		Tokens:      tokens,
		Graph:       graph,
		OAuth: dialog.OAuthSettings{
			ConnectionName: tokenCfg.ConnectionName,
			Timeout:        time.Duration(envInt("LOGIN_TIMEOUT_SECONDS", 300)) * time.Second,
		},
	})
	if err != nil {
		fatal("failed to build dialogs", err)
	}
	router, err := bot.NewRouter(set, catalog, registry, tracker)
	if err != nil {
		fatal("failed to create router", err)
	}

	// ---- Handler ----
	turnService, err := usecase.NewTurnService(router, stateClient, catalog, tracker, logger)
	if err != nil {
		fatal("failed to create turn service", err)
	}
	h, err := handler.NewHandler(turnService)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{"err", err}, attrs...)...)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
