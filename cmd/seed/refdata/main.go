package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crowdfund-platform/pkg/config"
	"crowdfund-platform/pkg/db"
	"crowdfund-platform/pkg/logger"
	"crowdfund-platform/services/campaign"
	"crowdfund-platform/services/ledger"
	"crowdfund-platform/services/person"
	"crowdfund-platform/services/refdata"
	"crowdfund-platform/services/requirement"
	"crowdfund-platform/services/reward"
)

// Seeds the schema plus the reference rows every environment needs:
// categories, countries, payment methods and an initial admin person.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(seed),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(3)
}

func seed(gdb *gorm.DB, node *snowflake.Node, shutdowner fx.Shutdowner) error {
	defer shutdowner.Shutdown()

	if err := gdb.AutoMigrate(
		&refdata.Category{},
		&refdata.Country{},
		&refdata.PaymentMethod{},
		&person.Person{},
		&requirement.RequirementType{},
		&requirement.CategoryRequirement{},
		&requirement.Response{},
		&campaign.Campaign{},
		&campaign.Observation{},
		&campaign.Favorite{},
		&ledger.Donation{},
		&reward.Reward{},
		&reward.Claim{},
	); err != nil {
		zap.L().Error("migration failed", zap.Error(err))
		return err
	}

	categories := []string{"Health", "Education", "Environment", "Animals", "Community", "Technology", "Arts"}
	for _, name := range categories {
		row := refdata.Category{ID: node.Generate().Int64(), Name: name}
		if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}

	countries := []refdata.Country{
		{Name: "Argentina", Code: "AR"},
		{Name: "Brazil", Code: "BR"},
		{Name: "Chile", Code: "CL"},
		{Name: "Colombia", Code: "CO"},
		{Name: "Mexico", Code: "MX"},
		{Name: "Peru", Code: "PE"},
		{Name: "Uruguay", Code: "UY"},
	}
	for _, c := range countries {
		c.ID = node.Generate().Int64()
		if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error; err != nil {
			return err
		}
	}

	methods := []string{"Credit Card", "Debit Card", "Bank Transfer", "Digital Wallet"}
	for _, name := range methods {
		row := refdata.PaymentMethod{ID: node.Generate().Int64(), Name: name, IsActive: true}
		if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}

	types := []string{"Text", "File", "URL"}
	for _, name := range types {
		row := requirement.RequirementType{ID: node.Generate().Int64(), Name: name}
		if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}

	admin := person.Person{
		ID:        node.Generate().Int64(),
		FirstName: "Platform",
		LastName:  "Admin",
		Email:     "admin@crowdfund.local",
		IsActive:  true,
	}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&admin).Error; err != nil {
		return err
	}

	zap.L().Info("reference data seeded")
	return nil
}
