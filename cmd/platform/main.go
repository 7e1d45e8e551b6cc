package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	pkgasynq "crowdfund-platform/pkg/asynq"
	"crowdfund-platform/pkg/authz"
	"crowdfund-platform/pkg/config"
	"crowdfund-platform/pkg/db"
	"crowdfund-platform/pkg/logger"
	"crowdfund-platform/pkg/notify"
	"crowdfund-platform/pkg/payment"
	"crowdfund-platform/pkg/redis"
	"crowdfund-platform/pkg/sequence"
	"crowdfund-platform/pkg/server"
	"crowdfund-platform/services/campaign"
	"crowdfund-platform/services/ledger"
	"crowdfund-platform/services/person"
	"crowdfund-platform/services/refdata"
	"crowdfund-platform/services/requirement"
	"crowdfund-platform/services/reward"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		pkgasynq.Client,
		sequence.Module,
		notify.Module,
		fx.Provide(
			provideSnowflakeNode,
			authz.New,
			payment.New,
		),

		refdata.Module,
		person.Module,
		requirement.Module,
		campaign.Module,
		ledger.Module,
		reward.Module,

		server.HTTPModule,
		server.GRPCModule,
		refdata.Routes,
		person.Routes,
		requirement.Routes,
		campaign.Routes,
		ledger.Routes,
		reward.Routes,

		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
