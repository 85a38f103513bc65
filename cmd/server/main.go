package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/api"
	"whatsapp-dispatch/internal/autoreply"
	"whatsapp-dispatch/internal/campaign"
	"whatsapp-dispatch/internal/config"
	"whatsapp-dispatch/internal/database"
	"whatsapp-dispatch/internal/delivery"
	"whatsapp-dispatch/internal/dispatch"
	"whatsapp-dispatch/internal/ratelimit"
	"whatsapp-dispatch/internal/scheduler"
	"whatsapp-dispatch/internal/stats"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/transport"
	"whatsapp-dispatch/internal/webhook"
	"whatsapp-dispatch/internal/ws"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.LoadConfig()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	st := store.NewGorm(db)

	hub := ws.NewHub()
	go hub.Run()

	transportClient := transport.NewClient(cfg.TransportURL, cfg.TransportTimeout)
	limiter := ratelimit.NewLimiter(st)
	aggregator := stats.NewAggregator(st)
	aggregator.SetEvents(hub)
	engine := delivery.NewEngine(st, aggregator)
	engine.SetEvents(hub)
	queue := dispatch.NewQueue(st, transportClient, limiter, engine)
	matcher := autoreply.NewMatcher(st, queue, cfg.FirstMessageScope)
	orchestrator := campaign.NewOrchestrator(st, queue, limiter)

	sched := scheduler.New(limiter, aggregator, orchestrator)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("starting scheduler")
	}
	defer sched.Stop()

	webhookHandler := webhook.NewHandler(st, engine, matcher, hub)
	connectionHandler := api.NewConnectionHandler(st, transportClient)
	contactHandler := api.NewContactHandler(st)
	segmentHandler := api.NewSegmentHandler(st, aggregator)
	templateHandler := api.NewTemplateHandler(st)
	campaignHandler := api.NewCampaignHandler(st, orchestrator, aggregator)
	messageHandler := api.NewMessageHandler(st, queue)
	autoReplyHandler := api.NewAutoReplyHandler(st)

	r := gin.Default()

	// CORS middleware for the dashboard frontend.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	// Webhook routes consumed by the transport service.
	webhookGroup := r.Group("/webhook")
	{
		webhookGroup.POST("/event", webhookHandler.HandleConnectionEvent)
		webhookGroup.POST("/message-status", webhookHandler.HandleMessageStatus)
		webhookGroup.POST("/incoming", webhookHandler.HandleIncomingMessage)
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", connectionHandler.GetServiceStatus)

		apiGroup.POST("/connections", connectionHandler.CreateConnection)
		apiGroup.GET("/connections", connectionHandler.GetConnections)
		apiGroup.POST("/connections/:id/connect", connectionHandler.Connect)
		apiGroup.POST("/connections/:id/disconnect", connectionHandler.Disconnect)
		apiGroup.GET("/connections/:id/status", connectionHandler.GetConnectionStatus)
		apiGroup.POST("/connections/:id/contact-info", connectionHandler.GetContactInfo)

		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.POST("/contacts", contactHandler.CreateContact)
		apiGroup.POST("/contacts/import", contactHandler.ImportContacts)
		apiGroup.GET("/contacts/:phone", contactHandler.GetContact)
		apiGroup.POST("/contacts/:phone/opt-in", contactHandler.OptIn)
		apiGroup.POST("/contacts/:phone/opt-out", contactHandler.OptOut)
		apiGroup.POST("/contacts/:phone/tags", contactHandler.AddTag)
		apiGroup.DELETE("/contacts/:phone/tags", contactHandler.RemoveTag)
		apiGroup.GET("/contacts/:phone/conversation", contactHandler.GetConversation)

		apiGroup.POST("/segments", segmentHandler.SaveSegment)
		apiGroup.GET("/segments/:id", segmentHandler.GetSegment)
		apiGroup.POST("/segments/:id/refresh", segmentHandler.RefreshSegment)
		apiGroup.GET("/segments/:id/contacts", segmentHandler.GetSegmentContacts)

		apiGroup.GET("/templates", templateHandler.GetTemplates)
		apiGroup.POST("/templates", templateHandler.SaveTemplate)
		apiGroup.POST("/templates/:id/preview", templateHandler.PreviewTemplate)

		apiGroup.POST("/campaigns", campaignHandler.CreateCampaign)
		apiGroup.GET("/campaigns/:id", campaignHandler.GetCampaign)
		apiGroup.POST("/campaigns/:id/start", campaignHandler.StartCampaign)
		apiGroup.POST("/campaigns/:id/pause", campaignHandler.PauseCampaign)
		apiGroup.POST("/campaigns/:id/resume", campaignHandler.ResumeCampaign)
		apiGroup.POST("/campaigns/:id/stop", campaignHandler.StopCampaign)
		apiGroup.GET("/campaigns/:id/stats", campaignHandler.GetCampaignStats)

		apiGroup.POST("/messages/send", messageHandler.SendMessage)
		apiGroup.GET("/messages", messageHandler.GetMessages)

		apiGroup.GET("/autoreply/rules", autoReplyHandler.GetRules)
		apiGroup.POST("/autoreply/rules", autoReplyHandler.CreateRule)
		apiGroup.DELETE("/autoreply/rules/:id", autoReplyHandler.DeleteRule)
	}

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("running server")
	}
}
