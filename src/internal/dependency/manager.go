package dependency

import (
	"studyhall-session-svc/src/clients"
	"studyhall-session-svc/src/internal/cache"
	"studyhall-session-svc/src/internal/config"
	"studyhall-session-svc/src/internal/presence"
	"studyhall-session-svc/src/internal/ranking"
	"studyhall-session-svc/src/internal/room"
	"studyhall-session-svc/src/internal/scheduler"
	"studyhall-session-svc/src/internal/settlement"

	"github.com/gin-gonic/gin"
)

type Manager struct {
	Router            *gin.Engine
	Config            *config.Configuration
	Mongodb           *clients.MongoDB
	Redis             *clients.RedisClient
	RabbitMQ          *clients.RabbitMQ
	Notifier          *clients.Notifier
	CacheService      cache.Service
	Tracker           *presence.Tracker
	PresenceHandler   presence.Handler
	RankingService    ranking.Service
	SettlementService settlement.Service
	SettlementHandler settlement.Handler
	RoomService       room.Service
	RoomHandler       room.Handler
	Scheduler         *scheduler.Scheduler
	Consumer          *scheduler.Consumer
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {
	collections := cfg.Database.Collections

	cacheService := cache.NewCacheService(redisClient.Client, cfg)
	notifier := clients.NewNotifier(cfg, rabbitMQ.Channel)

	stayRepo := presence.NewStayRepository(mongodb, collections.Stays)
	tracker := presence.NewTracker(stayRepo, cfg.Rooms.StayRepairLimit)
	presenceHandler := presence.NewHandler(cfg, tracker)

	snapshotRepo := ranking.NewSnapshotRepository(mongodb, collections.Snapshots)
	rankingService := ranking.NewRankingService(stayRepo, snapshotRepo, cacheService)

	ledgerRepo := settlement.NewLedgerRepository(mongodb, collections.Ledger, collections.Wallets)
	settlementService := settlement.NewSettlementService(ledgerRepo, cacheService)
	settlementHandler := settlement.NewHandler(cfg, settlementService)

	roomRepo := room.NewRoomRepository(mongodb, collections.Rooms)
	sched := scheduler.NewScheduler(rabbitMQ.Channel, roomRepo, cfg)
	roomService := room.NewRoomService(roomRepo, sched, settlementService, rankingService, notifier, cfg)
	roomHandler := room.NewHandler(cfg, roomService, rankingService, settlementService)

	consumer := scheduler.NewConsumer(rabbitMQ.Channel, roomService, cfg)

	return &Manager{
		Router:            router,
		Config:            cfg,
		Mongodb:           mongodb,
		Redis:             redisClient,
		RabbitMQ:          rabbitMQ,
		Notifier:          notifier,
		CacheService:      cacheService,
		Tracker:           tracker,
		PresenceHandler:   presenceHandler,
		RankingService:    rankingService,
		SettlementService: settlementService,
		SettlementHandler: settlementHandler,
		RoomService:       roomService,
		RoomHandler:       roomHandler,
		Scheduler:         sched,
		Consumer:          consumer,
	}
}
